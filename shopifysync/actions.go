package shopifysync

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/utils"
)

// Merchant actions. Each one calls the Shopify Admin API, then re-fetches
// the affected order and re-ingests it so the local copy reflects the result
// without waiting for a webhook.

type CreateFulfillmentRequest struct {
	ShopifyOrderId  string `json:"shopifyOrderId" binding:"required"`
	TrackingNumber  string `json:"trackingNumber"`
	TrackingCompany string `json:"trackingCompany"`
	NotifyCustomer  bool   `json:"notifyCustomer"`
}

type CancelOrderRequest struct {
	ShopifyOrderId string `json:"shopifyOrderId" binding:"required"`
	Reason         string `json:"reason" binding:"omitempty,oneof=customer inventory fraud declined other"`
	Restock        bool   `json:"restock"`
	NotifyCustomer bool   `json:"notifyCustomer"`
}

type CreateRefundRequest struct {
	ShopifyOrderId string              `json:"shopifyOrderId" binding:"required"`
	Note           string              `json:"note"`
	Notify         bool                `json:"notify"`
	Items          []RefundItemRequest `json:"items" binding:"required,min=1,dive"`
}

type RefundItemRequest struct {
	ShopifyLineItemId string `json:"shopifyLineItemId" binding:"required"`
	Quantity          int    `json:"quantity" binding:"required,min=1"`
	RestockType       string `json:"restockType" binding:"omitempty,oneof=no_restock cancel return"`
}

type AdjustQuantityRequest struct {
	ShopifyOrderId    string `json:"shopifyOrderId" binding:"required"`
	ShopifyLineItemId string `json:"shopifyLineItemId" binding:"required"`
	Quantity          int    `json:"quantity" binding:"min=0"`
	Restock           bool   `json:"restock"`
	StaffNote         string `json:"staffNote"`
}

func newActionClient() (*shopifyClient, error) {
	cfg, err := config.GetShopifyConfig()
	if err != nil {
		return nil, err
	}
	return newShopifyClient(cfg), nil
}

// resyncOrder refreshes the local copy after a successful action. Failure
// here does not fail the action: Shopify already applied it, and the next
// sync or webhook will reconcile.
func resyncOrder(ctx context.Context, client *shopifyClient, shopifyOrderId string) {
	logger := config.GetLogger()
	payload, err := client.GetOrder(ctx, shopifyOrderId)
	if err != nil {
		config.LogError(logger, "shopifysync", "resyncOrder", "fetch order", shopifyOrderId, err)
		return
	}
	if err := UpsertOrder(ctx, config.GetDB(), client, payload, nil); err != nil {
		config.LogError(logger, "shopifysync", "resyncOrder", "upsert order", shopifyOrderId, err)
	}
}

// ListLocationsHandler exposes the store's locations for the fulfillment form.
func ListLocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := newActionClient()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		locations, err := client.GetLocations(c.Request.Context())
		if err != nil {
			respondAPIError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": locations})
	}
}

// CreateFulfillmentHandler fulfills an order's open fulfillment orders.
// Shopify requires going through the fulfillment-orders surface; fulfilling
// a plain order id directly is not supported on current API versions.
func CreateFulfillmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateFulfillmentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		client, err := newActionClient()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		fulfillmentOrders, err := client.GetFulfillmentOrders(ctx, req.ShopifyOrderId)
		if err != nil {
			respondAPIError(c, err)
			return
		}

		lineItemsByOrder := make([]map[string]interface{}, 0, len(fulfillmentOrders))
		for _, fo := range fulfillmentOrders {
			if fo.Status != "open" && fo.Status != "in_progress" {
				continue
			}
			lineItemsByOrder = append(lineItemsByOrder, map[string]interface{}{
				"fulfillment_order_id": fo.ID,
			})
		}
		if len(lineItemsByOrder) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no open fulfillment orders"})
			return
		}

		fulfillment := map[string]interface{}{
			"line_items_by_fulfillment_order": lineItemsByOrder,
			"notify_customer":                 req.NotifyCustomer,
		}
		if req.TrackingNumber != "" {
			fulfillment["tracking_info"] = map[string]interface{}{
				"number":  req.TrackingNumber,
				"company": req.TrackingCompany,
			}
		}

		if _, err := client.CreateFulfillment(ctx, map[string]interface{}{"fulfillment": fulfillment}); err != nil {
			respondAPIError(c, err)
			return
		}

		resyncOrder(ctx, client, req.ShopifyOrderId)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		client, err := newActionClient()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		reason := req.Reason
		if reason == "" {
			reason = "other"
		}
		payload := map[string]interface{}{
			"reason":  reason,
			"restock": req.Restock,
			"email":   req.NotifyCustomer,
		}

		if _, err := client.CancelOrder(ctx, req.ShopifyOrderId, payload); err != nil {
			respondAPIError(c, err)
			return
		}

		resyncOrder(ctx, client, req.ShopifyOrderId)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CreateRefundHandler refunds specific line items. The amounts come from
// Shopify's own calculate endpoint, so the refund matches what the store
// would charge back, including taxes and gateway splits.
func CreateRefundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		client, err := newActionClient()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		refundLineItems := make([]map[string]interface{}, 0, len(req.Items))
		for _, item := range req.Items {
			restockType := item.RestockType
			if restockType == "" {
				restockType = "no_restock"
			}
			refundLineItems = append(refundLineItems, map[string]interface{}{
				"line_item_id": item.ShopifyLineItemId,
				"quantity":     item.Quantity,
				"restock_type": restockType,
			})
		}

		calculated, err := client.CalculateRefund(ctx, req.ShopifyOrderId, map[string]interface{}{
			"refund": map[string]interface{}{
				"refund_line_items": refundLineItems,
			},
		})
		if err != nil {
			respondAPIError(c, err)
			return
		}
		if len(calculated.RefundLineItems) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "nothing refundable for the requested items"})
			return
		}

		transactions := make([]map[string]interface{}, 0, len(calculated.Transactions))
		for _, t := range calculated.Transactions {
			transactions = append(transactions, map[string]interface{}{
				"parent_id": t.ParentID,
				"amount":    t.Amount,
				"kind":      "refund",
				"gateway":   t.Gateway,
			})
		}

		refundPayload := map[string]interface{}{
			"refund": map[string]interface{}{
				"note":              req.Note,
				"notify":            req.Notify,
				"refund_line_items": refundLineItems,
				"transactions":      transactions,
			},
		}
		if _, err := client.CreateRefund(ctx, req.ShopifyOrderId, refundPayload); err != nil {
			respondAPIError(c, err)
			return
		}

		resyncOrder(ctx, client, req.ShopifyOrderId)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

const orderEditBeginMutation = `
mutation orderEditBegin($id: ID!) {
  orderEditBegin(id: $id) {
    calculatedOrder { id }
    userErrors { field message }
  }
}`

const orderEditSetQuantityMutation = `
mutation orderEditSetQuantity($id: ID!, $lineItemId: ID!, $quantity: Int!, $restock: Boolean) {
  orderEditSetQuantity(id: $id, lineItemId: $lineItemId, quantity: $quantity, restock: $restock) {
    calculatedOrder { id }
    userErrors { field message }
  }
}`

const orderEditCommitMutation = `
mutation orderEditCommit($id: ID!, $staffNote: String) {
  orderEditCommit(id: $id, notifyCustomer: false, staffNote: $staffNote) {
    order { id }
    userErrors { field message }
  }
}`

type graphqlUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func firstUserError(errs []graphqlUserError) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errs[0].Message)
}

// AdjustQuantityHandler changes a line item's quantity through the order
// editing GraphQL flow: begin, set quantity, commit. Any userErrors abort
// before commit so the edit session is abandoned instead of half-applied.
func AdjustQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		client, err := newActionClient()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()

		var begin struct {
			OrderEditBegin struct {
				CalculatedOrder struct {
					ID string `json:"id"`
				} `json:"calculatedOrder"`
				UserErrors []graphqlUserError `json:"userErrors"`
			} `json:"orderEditBegin"`
		}
		err = client.graphql(ctx, orderEditBeginMutation, map[string]interface{}{
			"id": "gid://shopify/Order/" + req.ShopifyOrderId,
		}, &begin)
		if err == nil {
			err = firstUserError(begin.OrderEditBegin.UserErrors)
		}
		if err != nil {
			respondAPIError(c, err)
			return
		}
		calcOrderId := begin.OrderEditBegin.CalculatedOrder.ID

		var setQty struct {
			OrderEditSetQuantity struct {
				UserErrors []graphqlUserError `json:"userErrors"`
			} `json:"orderEditSetQuantity"`
		}
		err = client.graphql(ctx, orderEditSetQuantityMutation, map[string]interface{}{
			"id":         calcOrderId,
			"lineItemId": "gid://shopify/CalculatedLineItem/" + req.ShopifyLineItemId,
			"quantity":   req.Quantity,
			"restock":    req.Restock,
		}, &setQty)
		if err == nil {
			err = firstUserError(setQty.OrderEditSetQuantity.UserErrors)
		}
		if err != nil {
			respondAPIError(c, err)
			return
		}

		var commit struct {
			OrderEditCommit struct {
				UserErrors []graphqlUserError `json:"userErrors"`
			} `json:"orderEditCommit"`
		}
		err = client.graphql(ctx, orderEditCommitMutation, map[string]interface{}{
			"id":        calcOrderId,
			"staffNote": req.StaffNote,
		}, &commit)
		if err == nil {
			err = firstUserError(commit.OrderEditCommit.UserErrors)
		}
		if err != nil {
			respondAPIError(c, err)
			return
		}

		resyncOrder(ctx, client, req.ShopifyOrderId)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// respondAPIError maps Shopify failures onto our reply: upstream rejections
// surface as 422 with the upstream message, transport failures as 502.
func respondAPIError(c *gin.Context, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": strings.TrimSpace(apiErr.Body), "upstreamStatus": apiErr.StatusCode})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
}
