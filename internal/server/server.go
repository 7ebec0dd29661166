package server

// Данный сервер просто объединяет специфичные HTTP сервера, отвечающие за обработку конкретных сущностей
type Server struct {
	EscrowServer
	WebhookServer
}

func NewServer(
	escrowServer EscrowServer,
	webhookServer WebhookServer,
) Server {
	return Server{
		EscrowServer:  escrowServer,
		WebhookServer: webhookServer,
	}
}
