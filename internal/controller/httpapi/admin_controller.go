package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AdminController struct {
	accounts AccountRemover
	logger   *zap.Logger
}

func NewAdminController(accounts AccountRemover, logger *zap.Logger) *AdminController {
	return &AdminController{accounts: accounts, logger: logger}
}

func (ad *AdminController) DeleteUser(c *gin.Context) {
	report, err := ad.accounts.DeleteAccount(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		if report != nil {
			ad.logger.Warn("Account cascade interrupted",
				zap.String("user_id", c.Param("id")),
				zap.Int("cancelled_appointments", len(report.CancelledAppointments)),
				zap.Int("deleted_conversations", len(report.DeletedConversations)),
			)
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":                report.UserID,
		"role":                  report.Role,
		"cancelledAppointments": report.CancelledAppointments,
		"deletedConversations":  report.DeletedConversations,
	})
}
