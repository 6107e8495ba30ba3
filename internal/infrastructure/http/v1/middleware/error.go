package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txscope/internal/core/apperror"
	appctx "txscope/internal/core/context"
	"txscope/internal/core/tx"
	"txscope/pkg/logger"
)

// CodeTransactionFailure is returned for failures that rolled a transaction
// back without carrying an application error.
const CodeTransactionFailure = "TRANSACTION_FAILURE"

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(ctx, "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
			return
		}

		if kind, ok := tx.KindOf(err); ok && kind != tx.KindUnclassified {
			logger.Warn(ctx, "transaction failure", "kind", kind.String(), "error", err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":    CodeTransactionFailure,
				"message": err.Error(),
				"details": map[string]any{
					"kind":       kind.Name(),
					"category":   kind.Category().String(),
					"request_id": appctx.GetRequestID(ctx),
				},
			})
			return
		}

		logger.Error(ctx, "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": appctx.GetRequestID(ctx),
			},
		})
	}
}
