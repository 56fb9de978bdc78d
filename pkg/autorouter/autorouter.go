package autorouter

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/danghamo/satwatch/pkg/logger"
)

// HandlerFunc represents the expected handler function signature
type HandlerFunc func(http.ResponseWriter, *http.Request)

// Middleware represents middleware function signature
type Middleware func(http.Handler) http.Handler

// RegistrationOptions configures how handlers are registered
type RegistrationOptions struct {
	Prefix       string       // URL prefix (e.g., "/api/v1/")
	MethodPrefix string       // Method prefix (e.g., "tracking." -> "tracking.Toggle")
	Middleware   []Middleware // Middleware chain to apply
	Logger       *logger.Logger
}

// AutoRouter registers every exported func(http.ResponseWriter, *http.Request)
// method of a handler struct as a route
type AutoRouter struct {
	mux     *http.ServeMux
	options RegistrationOptions
	logger  *logger.Logger
}

// HandlerInfo provides information about registered handlers
type HandlerInfo struct {
	URLPath    string
	MethodName string
}

// NewAutoRouter creates a new auto router
func NewAutoRouter(mux *http.ServeMux, options RegistrationOptions) *AutoRouter {
	log := options.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &AutoRouter{
		mux:     mux,
		options: options,
		logger:  log.WithComponent("autorouter"),
	}
}

// RegisterHandlers registers all methods of handler that match HandlerFunc.
// Methods starting with "Handle" are left for manual registration.
func (ar *AutoRouter) RegisterHandlers(handler any) ([]HandlerInfo, error) {
	routes, err := ar.discover(handler)
	if err != nil {
		return nil, err
	}

	handlerValue := reflect.ValueOf(handler)
	for _, route := range routes {
		method := handlerValue.MethodByName(route.MethodName)
		ar.mux.HandleFunc(route.URLPath, ar.applyMiddleware(ar.createHandlerFunc(method)))
		ar.logger.Debug("Auto-registered route",
			zap.String("path", route.URLPath),
			zap.String("method", route.MethodName))
	}
	return routes, nil
}

// RegisterHandlersWith registers handler with extra middleware in front of
// the configured chain
func (ar *AutoRouter) RegisterHandlersWith(handler any, middleware ...Middleware) ([]HandlerInfo, error) {
	options := ar.options
	options.Middleware = append(append([]Middleware{}, middleware...), ar.options.Middleware...)

	scoped := &AutoRouter{mux: ar.mux, options: options, logger: ar.logger}
	return scoped.RegisterHandlers(handler)
}

// RegisterSingleMethod registers a single method with custom path
func (ar *AutoRouter) RegisterSingleMethod(handler any, methodName string, customPath string) error {
	method := reflect.ValueOf(handler).MethodByName(methodName)
	if !method.IsValid() {
		return fmt.Errorf("method %s not found", methodName)
	}
	if !isValidHandlerFunc(method) {
		return fmt.Errorf("method %s does not match handler signature", methodName)
	}

	fullPath := ar.options.Prefix + customPath
	ar.mux.HandleFunc(fullPath, ar.applyMiddleware(ar.createHandlerFunc(method)))
	ar.logger.Debug("Auto-registered route (custom)",
		zap.String("path", fullPath),
		zap.String("method", methodName))
	return nil
}

// GetRegisteredHandlers returns the routes RegisterHandlers would create
func (ar *AutoRouter) GetRegisteredHandlers(handler any) []HandlerInfo {
	routes, _ := ar.discover(handler)
	return routes
}

func (ar *AutoRouter) discover(handler any) ([]HandlerInfo, error) {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}
	if handlerType.Kind() == reflect.Ptr {
		handlerType = handlerType.Elem()
	}
	if handlerType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("handler must be a struct or pointer to struct")
	}

	handlerValue := reflect.ValueOf(handler)
	var routes []HandlerInfo
	for i := 0; i < handlerValue.NumMethod(); i++ {
		methodName := handlerValue.Type().Method(i).Name

		// Skip methods that start with "Handle" as they're likely already manual handlers
		if strings.HasPrefix(methodName, "Handle") {
			continue
		}
		if !isValidHandlerFunc(handlerValue.Method(i)) {
			continue
		}

		routes = append(routes, HandlerInfo{
			URLPath:    ar.buildURLPath(methodName),
			MethodName: methodName,
		})
	}
	return routes, nil
}

// isValidHandlerFunc checks for func(http.ResponseWriter, *http.Request),
// optionally returning error
func isValidHandlerFunc(method reflect.Value) bool {
	methodType := method.Type()
	if methodType.Kind() != reflect.Func || methodType.NumIn() != 2 || methodType.NumOut() > 1 {
		return false
	}

	if methodType.NumOut() == 1 {
		errorInterface := reflect.TypeOf((*error)(nil)).Elem()
		if !methodType.Out(0).Implements(errorInterface) {
			return false
		}
	}

	responseWriterType := reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	if methodType.In(0) != responseWriterType {
		return false
	}
	return methodType.In(1) == reflect.TypeOf((*http.Request)(nil))
}

// buildURLPath constructs the URL path from method name
func (ar *AutoRouter) buildURLPath(methodName string) string {
	if ar.options.MethodPrefix != "" {
		return ar.options.Prefix + ar.options.MethodPrefix + methodName
	}
	return ar.options.Prefix + strings.ToLower(methodName)
}

// createHandlerFunc creates an http.HandlerFunc from a reflect.Value
func (ar *AutoRouter) createHandlerFunc(method reflect.Value) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := method.Call([]reflect.Value{reflect.ValueOf(w), reflect.ValueOf(r)})

		if len(results) > 0 && !results[0].IsNil() {
			if err := results[0].Interface().(error); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// applyMiddleware wraps handler so the first middleware runs first
func (ar *AutoRouter) applyMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	if len(ar.options.Middleware) == 0 {
		return handler
	}

	h := http.Handler(handler)
	for i := len(ar.options.Middleware) - 1; i >= 0; i-- {
		h = ar.options.Middleware[i](h)
	}
	return h.ServeHTTP
}

// QuickRegister is a convenience function for simple handler registration
func QuickRegister(mux *http.ServeMux, prefix string, methodPrefix string, handler any) error {
	router := NewAutoRouter(mux, RegistrationOptions{
		Prefix:       prefix,
		MethodPrefix: methodPrefix,
	})
	_, err := router.RegisterHandlers(handler)
	return err
}
