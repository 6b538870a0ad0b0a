package api

type embeddingRequest struct {
	Text string `json:"texto"`
}

type embeddingResponse struct {
	Key string `json:"key"`
}

type clearResponse struct {
	Removed int `json:"removidos"`
}
