package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — общая категория ошибок входных данных; до хранилища такие запросы не доходят.
	ErrValidation = errors.New("invalid order input")
	// Ошибка отсутствующего идентификатора пользователя.
	ErrUserRequired = errors.New("user_id must be positive")
	// Ошибка отсутствующего идентификатора ресторана.
	ErrRestaurantRequired = errors.New("restaurant_id must be positive")
	// Ошибка неизвестного статуса заказа.
	ErrStatusInvalid = errors.New("unknown order status")
	// Ошибка неизвестного типа исполнения.
	ErrTypeInvalid = errors.New("unknown order type")
	// Ошибка отсутствия позиций в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего идентификатора товара в позиции.
	ErrLineProductRequired = errors.New("line product_id must be positive")
	// Ошибка при некорректном количестве товара (< 1).
	ErrLineQtyInvalid = errors.New("line quantity must be at least 1")
	// Ошибка отрицательного subtotal.
	ErrLineSubtotalInvalid = errors.New("line subtotal must be non-negative")
	// Ошибка subtotal, который не помещается в денежный формат хранилищ без округления.
	ErrLineSubtotalPrecision = errors.New("line subtotal must have at most 2 decimal places and 10 integer digits")
	// ErrOrderNotFound возвращается, если заказа с таким идентификатором нет.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPersistence — категория любых ошибок слоя хранения.
	ErrPersistence = errors.New("order persistence failed")
)

// NewValidationError объединяет замечания валидации в одну ошибку категории ErrValidation.
// errors.Is работает и для категории, и для каждого конкретного замечания.
func NewValidationError(problems []error) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, errors.Join(problems...))
}

// PersistenceError описывает сбой хранилища при выполнении операции Op.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError оборачивает ошибку хранилища. nil остаётся nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is позволяет проверять категорию через errors.Is(err, ErrPersistence).
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// IsNotFound проверяет, что заказ не найден.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}
