// Package storefront talks to the commerce platform's Storefront GraphQL API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/storefront-checkout/internal/address"
	"github.com/vasiliy-maslov/storefront-checkout/internal/apperror"
	"github.com/vasiliy-maslov/storefront-checkout/internal/checkout"
	"github.com/vasiliy-maslov/storefront-checkout/internal/config"
)

const tokenHeader = "X-Shopify-Storefront-Access-Token"

type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ checkout.Platform = (*Client)(nil)

func NewClient(cfg config.PlatformConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:   Endpoint(cfg.Domain, "/api/"+cfg.APIVersion+"/graphql.json"),
		token:      cfg.Token,
		httpClient: httpClient,
	}
}

// Endpoint builds an https URL from a bare shop domain. Domains that already
// carry a scheme are used as is.
func Endpoint(domain, path string) string {
	domain = strings.TrimRight(domain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + path
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type userError struct {
	Code    string   `json:"code"`
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type checkoutPayload struct {
	Checkout   *checkoutNode `json:"checkout"`
	UserErrors []userError   `json:"checkoutUserErrors"`
}

type moneyNode struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type checkoutNode struct {
	ID              string     `json:"id"`
	WebURL          string     `json:"webUrl"`
	Email           string     `json:"email"`
	CompletedAt     *time.Time `json:"completedAt"`
	SubtotalPrice   moneyNode  `json:"subtotalPriceV2"`
	TotalPrice      moneyNode  `json:"totalPriceV2"`
	ShippingAddress *struct {
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		Address1     string `json:"address1"`
		Address2     string `json:"address2"`
		City         string `json:"city"`
		Province     string `json:"province"`
		ProvinceCode string `json:"provinceCode"`
		Zip          string `json:"zip"`
		Country      string `json:"country"`
		Phone        string `json:"phone"`
	} `json:"shippingAddress"`
	LineItems struct {
		Edges []struct {
			Node struct {
				ID               string              `json:"id"`
				Title            string              `json:"title"`
				Quantity         int                 `json:"quantity"`
				CustomAttributes []checkout.Attribute `json:"customAttributes"`
				Variant          *struct {
					ID    string    `json:"id"`
					Price moneyNode `json:"priceV2"`
				} `json:"variant"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
}

func (c *Client) CreateSession(ctx context.Context) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutCreate", mutationCheckoutCreate, map[string]any{
		"input": map[string]any{"lineItems": []any{}},
	})
}

// FetchSession is a read and is retried once on a network failure.
func (c *Client) FetchSession(ctx context.Context, sessionID string) (*checkout.Session, error) {
	vars := map[string]any{"id": sessionID}

	data, err := c.do(ctx, "checkout", queryCheckout, vars)
	if apperror.Is(err, apperror.KindNetwork) {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("client: retrying checkout fetch")
		data, err = c.do(ctx, "checkout", queryCheckout, vars)
	}
	if err != nil {
		return nil, err
	}

	raw, ok := data["node"]
	if !ok || string(raw) == "null" {
		return nil, checkout.ErrSessionNotFound
	}

	var node checkoutNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("client: failed to decode checkout: %w", err)
	}
	if node.ID == "" {
		return nil, checkout.ErrSessionNotFound
	}
	return node.toSession()
}

func (c *Client) AddLineItems(ctx context.Context, sessionID string, items []checkout.LineItemInput) (*checkout.Session, error) {
	lineItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		attrs := item.Attributes
		if attrs == nil {
			attrs = []checkout.Attribute{}
		}
		lineItems = append(lineItems, map[string]any{
			"variantId":        item.VariantID,
			"quantity":         item.Quantity,
			"customAttributes": attrs,
		})
	}
	return c.mutate(ctx, "checkoutLineItemsAdd", mutationLineItemsAdd, map[string]any{
		"checkoutId": sessionID,
		"lineItems":  lineItems,
	})
}

func (c *Client) UpdateLineItemQuantity(ctx context.Context, sessionID, lineItemID string, quantity int) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutLineItemsUpdate", mutationLineItemsUpdate, map[string]any{
		"checkoutId": sessionID,
		"lineItems":  []map[string]any{{"id": lineItemID, "quantity": quantity}},
	})
}

func (c *Client) RemoveLineItem(ctx context.Context, sessionID, lineItemID string) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutLineItemsRemove", mutationLineItemsRemove, map[string]any{
		"checkoutId":  sessionID,
		"lineItemIds": []string{lineItemID},
	})
}

func (c *Client) UpdateEmail(ctx context.Context, sessionID, email string) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutEmailUpdateV2", mutationEmailUpdate, map[string]any{
		"checkoutId": sessionID,
		"email":      email,
	})
}

func (c *Client) UpdateShippingAddress(ctx context.Context, sessionID string, addr address.Address) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutShippingAddressUpdateV2", mutationShippingAddressUpdate, map[string]any{
		"checkoutId": sessionID,
		"shippingAddress": map[string]any{
			"firstName": addr.FirstName,
			"lastName":  addr.LastName,
			"address1":  addr.Address1,
			"address2":  addr.Address2,
			"city":      addr.City,
			"province":  addr.Region,
			"zip":       addr.PostalCode,
			"country":   addr.Country,
			"phone":     addr.Phone,
		},
	})
}

func (c *Client) AssociateCustomer(ctx context.Context, sessionID, customerAccessToken string) (*checkout.Session, error) {
	return c.mutate(ctx, "checkoutCustomerAssociateV2", mutationCustomerAssociate, map[string]any{
		"checkoutId":          sessionID,
		"customerAccessToken": customerAccessToken,
	})
}

func (c *Client) mutate(ctx context.Context, field, query string, vars map[string]any) (*checkout.Session, error) {
	data, err := c.do(ctx, field, query, vars)
	if err != nil {
		return nil, err
	}

	var payload checkoutPayload
	if raw, ok := data[field]; ok {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("client: failed to decode %s payload: %w", field, err)
		}
	}

	if len(payload.UserErrors) > 0 {
		return nil, classifyUserErrors(field, payload.UserErrors)
	}
	if payload.Checkout == nil {
		return nil, checkout.ErrSessionNotFound
	}
	return payload.Checkout.toSession()
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("client: failed to encode %s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("client: failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Network("storefront."+op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Network("storefront."+op, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Platform("storefront."+op, strings.TrimSpace(string(raw)), resp.StatusCode)
	}

	var decoded graphqlResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("client: failed to decode %s response: %w", op, err)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, apperror.Platform("storefront."+op, strings.Join(messages, "; "), resp.StatusCode)
	}

	return decoded.Data, nil
}

func classifyUserErrors(op string, userErrors []userError) error {
	messages := make([]string, 0, len(userErrors))
	for _, ue := range userErrors {
		switch ue.Code {
		case "ALREADY_COMPLETED":
			return checkout.ErrSessionCompleted
		case "LINE_ITEM_NOT_FOUND":
			return checkout.ErrLineItemNotFound
		case "INVALID", "NOT_FOUND":
			if len(ue.Field) > 0 && ue.Field[0] == "checkoutId" {
				return checkout.ErrSessionNotFound
			}
		}
		messages = append(messages, ue.Message)
	}
	return apperror.Platform("storefront."+op, strings.Join(messages, "; "), http.StatusUnprocessableEntity)
}

func (n *checkoutNode) toSession() (*checkout.Session, error) {
	subtotal, err := parseMoney(n.SubtotalPrice)
	if err != nil {
		return nil, err
	}
	total, err := parseMoney(n.TotalPrice)
	if err != nil {
		return nil, err
	}

	session := &checkout.Session{
		ID:          n.ID,
		LineItems:   make([]checkout.LineItem, 0, len(n.LineItems.Edges)),
		Email:       n.Email,
		Subtotal:    subtotal,
		Total:       total,
		CompletedAt: n.CompletedAt,
		WebURL:      n.WebURL,
	}

	if sa := n.ShippingAddress; sa != nil {
		session.ShippingAddress = &address.Address{
			FirstName:  sa.FirstName,
			LastName:   sa.LastName,
			Address1:   sa.Address1,
			Address2:   sa.Address2,
			City:       sa.City,
			Region:     sa.Province,
			RegionCode: sa.ProvinceCode,
			PostalCode: sa.Zip,
			Country:    sa.Country,
			Phone:      sa.Phone,
		}
		session.Phone = sa.Phone
	}

	for _, edge := range n.LineItems.Edges {
		item := checkout.LineItem{
			ID:         edge.Node.ID,
			Title:      edge.Node.Title,
			Quantity:   edge.Node.Quantity,
			Attributes: edge.Node.CustomAttributes,
		}
		if v := edge.Node.Variant; v != nil {
			item.VariantID = v.ID
			if item.UnitPrice, err = parseMoney(v.Price); err != nil {
				return nil, err
			}
		}
		session.LineItems = append(session.LineItems, item)
	}

	return session, nil
}

func parseMoney(m moneyNode) (checkout.Money, error) {
	if m.Amount == "" {
		return checkout.Money{Amount: decimal.Zero, CurrencyCode: m.CurrencyCode}, nil
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return checkout.Money{}, fmt.Errorf("client: invalid amount %q: %w", m.Amount, err)
	}
	return checkout.Money{Amount: amount, CurrencyCode: m.CurrencyCode}, nil
}
