package service

// Запросы Deriv API v3.
type authorizeReq struct {
	Authorize string `json:"authorize"`
}

// ticks_history с subscribe=1: запрашиваем бэкфил на глубину истории
// плюс живые обновления. Сам бэкфил (msg_type=candles) дальше игнорируется —
// нормализатор пропускает только конверты "ohlc".
type ticksHistoryReq struct {
	TicksHistory    string `json:"ticks_history"`
	AdjustStartTime int    `json:"adjust_start_time"`
	Count           int    `json:"count"`
	Granularity     int    `json:"granularity"`
	Subscribe       int    `json:"subscribe"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Входящий кадр. OHLC-цены Deriv шлёт строками.
type inboundFrame struct {
	MsgType string       `json:"msg_type"`
	Error   *apiError    `json:"error"`
	Ohlc    *ohlcPayload `json:"ohlc"`
}

type ohlcPayload struct {
	Symbol      string `json:"symbol"`
	Granularity int64  `json:"granularity"`
	Epoch       int64  `json:"epoch"`
	Open        string `json:"open"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Close       string `json:"close"`
}
