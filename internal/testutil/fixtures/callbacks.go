package fixtures

import (
	"fmt"
	"net/url"
	"strings"
)

// CallbackBuilder renders gateway callback documents for tests.
type CallbackBuilder struct {
	Result                 string
	ErrorCode              string
	MerchantErrorMessage   string
	CardHolderErrorMessage string
	MustBeShown            bool
	AuthType               string
	TransactionStatus      string
	ReservedAmount         string
	CapturedAmount         string
	ShopOrderID            string
	OrderToken             string
	TokenKey               string
	TransactionID          string
	PaymentID              string
	MaskedPan              string
	Scheme                 string
	ExpiryYear             string
	ExpiryMonth            string
	ReconciliationIDs      []string
	FraudRecommendation    string
}

// NewCallback returns a successful preauth callback for the default order
func NewCallback() *CallbackBuilder {
	return &CallbackBuilder{
		Result:            "Success",
		AuthType:          "payment",
		TransactionStatus: "preauth",
		ReservedAmount:    DefaultTotal,
		CapturedAmount:    "0",
		ShopOrderID:       DefaultOrderNo,
		OrderToken:        DefaultOrderToken,
		TokenKey:          "order_token",
		TransactionID:     "txn-123",
		PaymentID:         "pay-456",
		MaskedPan:         "411111******1111",
		Scheme:            "Visa",
		ExpiryYear:        "2027",
		ExpiryMonth:       "9",
		ReconciliationIDs: []string{"rec-1", "rec-2"},
	}
}

func (c *CallbackBuilder) WithResult(result, status string) *CallbackBuilder {
	c.Result = result
	c.TransactionStatus = status
	return c
}

func (c *CallbackBuilder) WithReserved(amount string) *CallbackBuilder {
	c.ReservedAmount = amount
	return c
}

func (c *CallbackBuilder) WithOrder(orderNo, token string) *CallbackBuilder {
	c.ShopOrderID = orderNo
	c.OrderToken = token
	return c
}

func (c *CallbackBuilder) WithCardHolderError(msg string, mustBeShown bool) *CallbackBuilder {
	c.CardHolderErrorMessage = msg
	c.MustBeShown = mustBeShown
	return c
}

func (c *CallbackBuilder) WithFraud(recommendation string) *CallbackBuilder {
	c.FraudRecommendation = recommendation
	return c
}

// XML renders the APIResponse document
func (c *CallbackBuilder) XML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><APIResponse version="20170228">`)
	fmt.Fprintf(&b, `<Header><ErrorCode>%s</ErrorCode><ErrorMessage/></Header>`, c.ErrorCode)
	b.WriteString(`<Body>`)
	fmt.Fprintf(&b, `<Result>%s</Result>`, c.Result)
	fmt.Fprintf(&b, `<MerchantErrorMessage>%s</MerchantErrorMessage>`, c.MerchantErrorMessage)
	fmt.Fprintf(&b, `<CardHolderErrorMessage>%s</CardHolderErrorMessage>`, c.CardHolderErrorMessage)
	fmt.Fprintf(&b, `<CardHolderMessageMustBeShown>%t</CardHolderMessageMustBeShown>`, c.MustBeShown)
	b.WriteString(`<Transactions><Transaction>`)
	fmt.Fprintf(&b, `<TransactionId>%s</TransactionId><PaymentId>%s</PaymentId>`, c.TransactionID, c.PaymentID)
	fmt.Fprintf(&b, `<AuthType>%s</AuthType><TransactionStatus>%s</TransactionStatus>`, c.AuthType, c.TransactionStatus)
	fmt.Fprintf(&b, `<ReservedAmount>%s</ReservedAmount><CapturedAmount>%s</CapturedAmount>`, c.ReservedAmount, c.CapturedAmount)
	fmt.Fprintf(&b, `<ShopOrderId>%s</ShopOrderId>`, c.ShopOrderID)
	fmt.Fprintf(&b, `<PaymentSchemeName>%s</PaymentSchemeName><CreditCardMaskedPan>%s</CreditCardMaskedPan>`, c.Scheme, c.MaskedPan)
	fmt.Fprintf(&b, `<CreditCardExpiry><Year>%s</Year><Month>%s</Month></CreditCardExpiry>`, c.ExpiryYear, c.ExpiryMonth)
	b.WriteString(`<PaymentInfos>`)
	if c.OrderToken != "" {
		fmt.Fprintf(&b, `<PaymentInfo name="%s">%s</PaymentInfo>`, c.TokenKey, c.OrderToken)
	}
	if c.FraudRecommendation != "" {
		fmt.Fprintf(&b, `<PaymentInfo name="fraud_recommendation">%s</PaymentInfo>`, c.FraudRecommendation)
	}
	b.WriteString(`</PaymentInfos><ReconciliationIdentifiers>`)
	for _, id := range c.ReconciliationIDs {
		fmt.Fprintf(&b, `<ReconciliationIdentifier><Id>%s</Id><Type>captured</Type></ReconciliationIdentifier>`, id)
	}
	b.WriteString(`</ReconciliationIdentifiers></Transaction></Transactions></Body></APIResponse>`)
	return b.String()
}

// Form renders the callback as the gateway posts it
func (c *CallbackBuilder) Form() url.Values {
	form := url.Values{}
	form.Set("xml", c.XML())
	form.Set("shop_orderid", c.ShopOrderID)
	form.Set("status", c.TransactionStatus)
	return form
}
