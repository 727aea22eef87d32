package httpx

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// NoStore — мониторинг всегда должен видеть живое состояние.
const NoStore = "no-cache, no-store, must-revalidate"

// Endpoint — общий контракт всех health-эндпоинтов, параметризованный только методом
// и набором разрешенных заголовков:
//   - CORS-заголовки на каждом ответе;
//   - OPTIONS отвечает 204 без тела до любой бизнес-логики;
//   - чужой метод отвечает 405 до любой бизнес-логики;
//   - кэширование запрещено;
//   - паника превращается в 500 с JSON-телом.
type Endpoint struct {
	Method       string
	AllowHeaders []string
	Logger       *zap.Logger
	// OnError пишет 500 после паники в формате эндпоинта; nil — общий ErrorBody.
	OnError func(w http.ResponseWriter, status int, msg string)
}

// AllowMethods — значение Access-Control-Allow-Methods для эндпоинта.
func (e Endpoint) AllowMethods() string {
	return e.Method + ", " + http.MethodOptions
}

func (e Endpoint) allowHeaders() string {
	if len(e.AllowHeaders) == 0 {
		return "Content-Type"
	}
	return strings.Join(e.AllowHeaders, ", ")
}

// Wrap применяет контракт к обработчику.
func (e Endpoint) Wrap(next http.Handler) http.Handler {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	allowMethods := e.AllowMethods()
	allowHeaders := e.allowHeaders()
	onError := e.OnError
	if onError == nil {
		onError = WriteError
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)

		// 1. Preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// 2. Method guard
		if r.Method != e.Method {
			h.Set("Allow", allowMethods)
			WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		h.Set("Cache-Control", NoStore)

		// 3. Внешний периметр: ничего не должно вылететь из обработчика
		tw := &trackingWriter{ResponseWriter: w}
		defer func() {
			if p := recover(); p != nil {
				logger.Error("panic recovered",
					zap.String("path", r.URL.Path),
					zap.Bool("headers_sent", tw.wrote),
					zap.Any("panic", p))
				// Ответ уже начат: второе тело только испортит JSON
				if tw.wrote {
					return
				}
				onError(w, http.StatusInternalServerError, fmt.Sprintf("%v", p))
			}
		}()

		next.ServeHTTP(tw, r)
	})
}

// Func — то же для http.HandlerFunc.
func (e Endpoint) Func(fn http.HandlerFunc) http.Handler {
	return e.Wrap(fn)
}

// trackingWriter запоминает, начат ли уже ответ.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}
