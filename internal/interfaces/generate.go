package interfaces

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/completer_mock.go github.com/ShixuDing/32933-project-match/internal/interfaces Completer
//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/producer_mock.go github.com/ShixuDing/32933-project-match/internal/interfaces ProducerHandler
//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/mailer_mock.go github.com/ShixuDing/32933-project-match/internal/interfaces MailSender
