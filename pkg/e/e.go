package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки TCP-протокола
	ErrIncompleteMessage = fmt.Errorf("mensaje incompleto")
	ErrNotARequest       = fmt.Errorf("mensaje recibido no es una solicitud válida")

	// Ошибки TCP-клиента
	ErrServiceUnavailable = fmt.Errorf("ml service unavailable")
	ErrTimeout            = fmt.Errorf("ml service timeout")

	// Внутренние ошибки с векторами и моделями
	ErrEmptyVectors         = fmt.Errorf("empty vectors")
	ErrVectorDimMismatch    = fmt.Errorf("vector dimension mismatch")
	ErrNotFitted            = fmt.Errorf("model is not fitted")
	ErrUnknownSource        = fmt.Errorf("unknown embedding source")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// DomainError — ошибка предметной области: её сообщение передаётся клиенту
// в теле результата ({"success": false, "error": ...}), а не как ошибка
// транспортного уровня.
type DomainError struct {
	Message string
}

func (d *DomainError) Error() string {
	return d.Message
}

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
