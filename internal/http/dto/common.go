package dto

// StatusResponse es la respuesta genérica de confirmación.
type StatusResponse struct {
	Status string `json:"status"`
}
