package domain

import "errors"

var (
	ErrPermissionDenied = errors.New("доступ к камере запрещен")
	ErrNoDevice         = errors.New("подходящая камера не найдена")
	ErrDeviceLost       = errors.New("камера отключилась во время трансляции")
	ErrCaptureFailed    = errors.New("не удалось получить снимок")
	ErrInvalidState     = errors.New("операция недопустима в текущем состоянии")
	ErrInvalidFacing    = errors.New("неизвестный режим камеры")
	ErrClosed           = errors.New("контроллер захвата закрыт")
	ErrAborted          = errors.New("операция прервана остановкой захвата")

	ErrUnsupportedImage = errors.New("неподдерживаемый формат изображения")
	ErrImageTooLarge    = errors.New("изображение превышает допустимый размер")
)

// UserMessage переводит ошибку в текст, который можно показать пользователю
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Camera access denied. Please enable camera permissions and try again."
	case errors.Is(err, ErrNoDevice):
		return "No camera was found for the requested facing mode."
	case errors.Is(err, ErrDeviceLost):
		return "The camera was disconnected. Reconnect it and try again."
	case errors.Is(err, ErrCaptureFailed):
		return "Could not capture a photo. Please try again."
	case errors.Is(err, ErrInvalidState):
		return "The camera is not ready for this action. Check its status and try again."
	case errors.Is(err, ErrAborted):
		return "The camera operation was interrupted. Please try again."
	case errors.Is(err, ErrInvalidFacing):
		return "Unknown camera facing mode. Use front or back."
	case errors.Is(err, ErrClosed):
		return "The camera is shutting down."
	case errors.Is(err, ErrUnsupportedImage):
		return "Please upload a JPG or PNG image file."
	case errors.Is(err, ErrImageTooLarge):
		return "File size must be less than 10MB."
	}
	return "Something went wrong with the camera. Please try again."
}
