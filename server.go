package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/arledger_backend/config"
	"bitbucket.org/mmdatafocus/arledger_backend/models"
	"bitbucket.org/mmdatafocus/arledger_backend/models/reports"
	"bitbucket.org/mmdatafocus/arledger_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const dateLayout = "2006-01-02"

// httpStatus maps the model error taxonomy onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound), errors.Is(err, utils.ErrorRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrDuplicateIdNumber):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	status := httpStatus(err)
	body := gin.H{"error": err.Error()}
	var conflict *models.VersionConflictError
	if errors.As(err, &conflict) {
		body["current_version"] = conflict.Current
		body["supplied_version"] = conflict.Supplied
	}
	if status == http.StatusInternalServerError {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "server.go", c.FullPath(), "request failed", gin.H{"correlation_id": cid}, err)
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return v, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " query parameter is required"})
		return 0, false
	}
	return v, true
}

func optionalIntQuery(c *gin.Context, name string) *int {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func dateQuery(c *gin.Context, name string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, c.Query(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a date (" + dateLayout + ")"})
		return time.Time{}, false
	}
	return t, true
}

func optionalDecimalQuery(c *gin.Context, name string) *decimal.Decimal {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	d, err := utils.ParseDecimal(raw)
	if err != nil {
		return nil
	}
	return &d
}

func optionalDateQuery(c *gin.Context, name string) *time.Time {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}

// versioned update payloads carry the version the client last read
func versionQuery(c *gin.Context) (int, bool) {
	v, err := strconv.Atoi(c.Query("version"))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version query parameter is required"})
		return 0, false
	}
	return v, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func registerBranchRoutes(g *gin.RouterGroup) {
	g.POST("/branches", func(c *gin.Context) {
		var input models.NewBranch
		if !bindJSON(c, &input) {
			return
		}
		branch, err := models.CreateBranch(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, branch)
	})
	g.GET("/branches", func(c *gin.Context) {
		branches, err := models.GetBranches(c.Request.Context(), utils.NilIfEmpty(c.Query("name")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, branches)
	})
	g.GET("/branches/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branch, err := models.GetBranch(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, branch)
	})
	g.PUT("/branches/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewBranch
		if !bindJSON(c, &input) {
			return
		}
		branch, err := models.UpdateBranch(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, branch)
	})
	g.PATCH("/branches/:id/active", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		branch, err := models.ToggleActiveBranch(c.Request.Context(), id, version, c.Query("is_active") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, branch)
	})
	g.DELETE("/branches/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branch, err := models.DeleteBranch(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, branch)
	})
}

func registerCustomerRoutes(g *gin.RouterGroup) {
	g.POST("/customers", func(c *gin.Context) {
		var input models.NewCustomer
		if !bindJSON(c, &input) {
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	})
	g.GET("/customers", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		filter := models.CustomerFilter{
			Name:        utils.NilIfEmpty(c.Query("name")),
			ParentsOnly: c.Query("parents_only") == "true",
			ParentId:    optionalIntQuery(c, "parent_id"),
			ActiveOnly:  c.Query("active_only") == "true",
		}
		customers, err := models.GetCustomers(c.Request.Context(), branchId, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	})
	g.GET("/customers/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		customer, err := models.GetCustomer(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	})
	g.PUT("/customers/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewCustomer
		if !bindJSON(c, &input) {
			return
		}
		customer, err := models.UpdateCustomer(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	})
	g.PATCH("/customers/:id/active", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		customer, err := models.ToggleActiveCustomer(c.Request.Context(), branchId, id, version, c.Query("is_active") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	})
}

func registerInvoiceRoutes(g *gin.RouterGroup) {
	g.POST("/credit-invoices", func(c *gin.Context) {
		var input models.NewCreditInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.CreateCreditInvoice(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	})
	g.GET("/credit-invoices", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		filter := models.CreditInvoiceFilter{
			CustomerId: optionalIntQuery(c, "customer_id"),
			FromDate:   optionalDateQuery(c, "from_date"),
			ToDate:     optionalDateQuery(c, "to_date"),
		}
		if settled := c.Query("settled"); settled != "" {
			value := settled == "true"
			filter.Settled = &value
		}
		invoices, err := models.GetCreditInvoices(c.Request.Context(), branchId, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	})
	g.GET("/credit-invoices/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		invoice, err := models.GetCreditInvoice(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})
	g.PUT("/credit-invoices/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewCreditInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.UpdateCreditInvoice(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})
	g.DELETE("/credit-invoices/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		invoice, err := models.DeleteCreditInvoice(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})
}

func registerInstrumentRoutes(g *gin.RouterGroup) {
	g.POST("/instrument-types", func(c *gin.Context) {
		var input models.NewPaymentInstrumentType
		if !bindJSON(c, &input) {
			return
		}
		instrumentType, err := models.CreatePaymentInstrumentType(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, instrumentType)
	})
	g.GET("/instrument-types", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		instrumentTypes, err := models.GetPaymentInstrumentTypes(c.Request.Context(), branchId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrumentTypes)
	})
	g.GET("/instrument-types/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		instrumentType, err := models.GetPaymentInstrumentType(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrumentType)
	})
	g.PUT("/instrument-types/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewPaymentInstrumentType
		if !bindJSON(c, &input) {
			return
		}
		instrumentType, err := models.UpdatePaymentInstrumentType(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrumentType)
	})
	g.POST("/instruments", func(c *gin.Context) {
		var input models.NewPaymentInstrument
		if !bindJSON(c, &input) {
			return
		}
		instrument, err := models.CreatePaymentInstrument(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, instrument)
	})
	g.GET("/instruments", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		instruments, err := models.GetPaymentInstruments(c.Request.Context(), branchId, c.Query("active_only") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instruments)
	})
	g.GET("/instruments/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		instrument, err := models.GetPaymentInstrument(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrument)
	})
	g.PUT("/instruments/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewPaymentInstrument
		if !bindJSON(c, &input) {
			return
		}
		instrument, err := models.UpdatePaymentInstrument(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrument)
	})
	g.PATCH("/instruments/:id/active", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		instrument, err := models.ToggleActivePaymentInstrument(c.Request.Context(), branchId, id, version, c.Query("is_active") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, instrument)
	})
}

func registerMasterClaimRoutes(g *gin.RouterGroup) {
	g.POST("/master-claims", func(c *gin.Context) {
		var input models.NewMasterClaim
		if !bindJSON(c, &input) {
			return
		}
		masterClaim, err := models.CreateMasterClaim(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, masterClaim)
	})
	g.GET("/master-claims", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		masterClaims, err := models.GetMasterClaims(c.Request.Context(), branchId, c.Query("active_only") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, masterClaims)
	})
	g.GET("/master-claims/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		masterClaim, err := models.GetMasterClaim(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, masterClaim)
	})
	g.PATCH("/master-claims/:id/active", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		masterClaim, err := models.ToggleActiveMasterClaim(c.Request.Context(), branchId, id, version, c.Query("is_active") == "true")
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, masterClaim)
	})
	g.PUT("/master-claims/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewMasterClaim
		if !bindJSON(c, &input) {
			return
		}
		masterClaim, err := models.UpdateMasterClaim(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, masterClaim)
	})
}

func registerPaymentRoutes(g *gin.RouterGroup) {
	g.POST("/payments", func(c *gin.Context) {
		var input models.NewPayment
		if !bindJSON(c, &input) {
			return
		}
		payment, err := models.CreatePayment(c.Request.Context(), &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	})
	g.GET("/payments", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		filter := models.PaymentFilter{
			CustomerId: optionalIntQuery(c, "customer_id"),
			FromDate:   optionalDateQuery(c, "from_date"),
			ToDate:     optionalDateQuery(c, "to_date"),
			MinAmount:  optionalDecimalQuery(c, "min_amount"),
		}
		payments, err := models.GetPayments(c.Request.Context(), branchId, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	})
	g.GET("/payments/unallocated", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		payments, err := models.UnallocatedPayments(c.Request.Context(), branchId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payments)
	})
	g.GET("/payments/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		payment, err := models.GetPayment(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	})
	g.PUT("/payments/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.NewPayment
		if !bindJSON(c, &input) {
			return
		}
		payment, err := models.UpdatePayment(c.Request.Context(), id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	})
	g.DELETE("/payments/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		payment, err := models.DeletePayment(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	})
}

func registerClaimRoutes(g *gin.RouterGroup) {
	g.GET("/claims", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		filter := models.ClaimFilter{
			MasterClaimId: optionalIntQuery(c, "master_claim_id"),
		}
		if status := c.Query("status"); status != "" {
			claimStatus := models.ClaimStatus(status)
			filter.Status = &claimStatus
		}
		claims, err := models.GetClaims(c.Request.Context(), branchId, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, claims)
	})
	g.GET("/claims/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		claim, err := models.GetClaim(c.Request.Context(), branchId, id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, claim)
	})
	g.PUT("/claims/:id", func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		version, ok := versionQuery(c)
		if !ok {
			return
		}
		var input models.UpdateClaimInput
		if !bindJSON(c, &input) {
			return
		}
		claim, err := models.UpdateClaim(c.Request.Context(), branchId, id, version, &input)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, claim)
	})
}

func registerHistoryRoutes(g *gin.RouterGroup) {
	g.GET("/histories", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		filter := models.HistoryFilter{
			ReferenceId: optionalIntQuery(c, "reference_id"),
			UserId:      optionalIntQuery(c, "user_id"),
		}
		if referenceType := c.Query("reference_type"); referenceType != "" {
			filter.ReferenceType = &referenceType
		}
		histories, err := models.GetHistories(c.Request.Context(), branchId, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, histories)
	})
}

func registerReportRoutes(g *gin.RouterGroup) {
	g.GET("/reports/customer-statement", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		customerId, ok := intQuery(c, "customer_id")
		if !ok {
			return
		}
		fromDate, ok := dateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := dateQuery(c, "to_date")
		if !ok {
			return
		}
		statement, err := reports.GetCustomerStatement(c.Request.Context(), branchId, customerId, fromDate, toDate)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, statement)
	})
	g.GET("/reports/parent-due", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		cutoff, ok := dateQuery(c, "cutoff")
		if !ok {
			return
		}
		sortBy := reports.ParentDueSort(c.DefaultQuery("sort_by", string(reports.ParentDueSortDue)))
		rows, err := reports.GetParentOrgDueReport(c.Request.Context(), branchId, cutoff, sortBy)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	})
	g.GET("/reports/invoice-payments", func(c *gin.Context) {
		branchId, ok := intQuery(c, "branch_id")
		if !ok {
			return
		}
		fromDate, ok := dateQuery(c, "from_date")
		if !ok {
			return
		}
		toDate, ok := dateQuery(c, "to_date")
		if !ok {
			return
		}
		rows, err := reports.GetInvoicePaymentReport(c.Request.Context(), branchId, fromDate, toDate)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	// Caller identity comes from the gateway; audit rows fall back to
	// "system" when the headers are absent.
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if userId, err := strconv.Atoi(c.GetHeader("x-user-id")); err == nil && userId > 0 {
			ctx = utils.SetUserIdInContext(ctx, userId)
		}
		if userName := c.GetHeader("x-user-name"); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); in non-production, allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/v1/ar")
	// ops escape hatch: drop every cached catalog and list
	api.POST("/admin/clear-redis", func(c *gin.Context) {
		if err := config.ClearRedis(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "redis cleared"})
	})
	registerBranchRoutes(api)
	registerCustomerRoutes(api)
	registerInvoiceRoutes(api)
	registerInstrumentRoutes(api)
	registerMasterClaimRoutes(api)
	registerPaymentRoutes(api)
	registerClaimRoutes(api)
	registerHistoryRoutes(api)
	registerReportRoutes(api)

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	log.Println("Server started successfully on port " + port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
