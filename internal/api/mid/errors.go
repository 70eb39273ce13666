package mid

import (
	"context"
	"net/http"

	"github.com/ahrav/upload-armada/internal/api/errs"
	"github.com/ahrav/upload-armada/pkg/common/logger"
	"github.com/ahrav/upload-armada/pkg/web"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform way.
// Unexpected errors (status >= 500) are logged.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)

			err, ok := resp.(error)
			if !ok {
				return resp
			}

			var appErr *errs.Error

			switch {
			case errs.IsFieldErrors(err):
				appErr = errs.GetFieldErrors(err).NewError()
			case errs.IsError(err):
				appErr = errs.GetError(err)
			default:
				appErr = errs.Newf(errs.Internal, "Internal Server Error")
			}

			log.Error(ctx, "handled error during request",
				"err", err.Error(),
				"source_err_file", appErr.FileName,
				"source_err_func", appErr.FuncName)

			if appErr.Code == errs.Internal {
				appErr.Message = "Internal Server Error"
			}

			return appErr
		}

		return h
	}

	return m
}
