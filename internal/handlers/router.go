package handlers

import (
	"net/http"

	"github.com/nkiryanov/storefront/internal/handlers/middleware"
	"github.com/nkiryanov/storefront/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(callback *CallbackHandler, logger logger.Logger) http.Handler {
	root := http.NewServeMux()
	root.Handle(CallbackPath, callback.Handler())

	return chain(root,
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
	)
}
