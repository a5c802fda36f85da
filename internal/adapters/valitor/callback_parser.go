package valitor

import (
	"encoding/json"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Form fields posted by the gateway next to the xml document
const (
	FormFieldXML                  = "xml"
	FormFieldShopOrderID          = "shop_orderid"
	FormFieldMerchantErrorMessage = "merchant_error_message"
	FormFieldFraudRecommendation  = "fraud_recommendation"
)

// DefaultOrderTokenKey is the transaction_info key carrying the order token
const DefaultOrderTokenKey = "order_token"

// apiResponse mirrors the gateway's APIResponse document. The same shape is
// accepted as JSON.
type apiResponse struct {
	Header struct {
		ErrorCode    string `xml:"ErrorCode" json:"ErrorCode"`
		ErrorMessage string `xml:"ErrorMessage" json:"ErrorMessage"`
	} `xml:"Header" json:"Header"`
	Body struct {
		Result                       string `xml:"Result" json:"Result"`
		MerchantErrorMessage         string `xml:"MerchantErrorMessage" json:"MerchantErrorMessage"`
		CardHolderErrorMessage       string `xml:"CardHolderErrorMessage" json:"CardHolderErrorMessage"`
		CardHolderMessageMustBeShown string `xml:"CardHolderMessageMustBeShown" json:"CardHolderMessageMustBeShown"`
		Transactions                 struct {
			Transaction []transaction `xml:"Transaction" json:"Transaction"`
		} `xml:"Transactions" json:"Transactions"`
	} `xml:"Body" json:"Body"`
}

type transaction struct {
	TransactionID     string `xml:"TransactionId" json:"TransactionId"`
	PaymentID         string `xml:"PaymentId" json:"PaymentId"`
	AuthType          string `xml:"AuthType" json:"AuthType"`
	TransactionStatus string `xml:"TransactionStatus" json:"TransactionStatus"`
	ReservedAmount    string `xml:"ReservedAmount" json:"ReservedAmount"`
	CapturedAmount    string `xml:"CapturedAmount" json:"CapturedAmount"`
	ShopOrderID       string `xml:"ShopOrderId" json:"ShopOrderId"`
	PaymentSchemeName string `xml:"PaymentSchemeName" json:"PaymentSchemeName"`
	MaskedPan         string `xml:"CreditCardMaskedPan" json:"CreditCardMaskedPan"`
	CreditCardExpiry  struct {
		Year  string `xml:"Year" json:"Year"`
		Month string `xml:"Month" json:"Month"`
	} `xml:"CreditCardExpiry" json:"CreditCardExpiry"`
	PaymentInfos struct {
		PaymentInfo []struct {
			Name  string `xml:"name,attr" json:"name"`
			Value string `xml:",chardata" json:"value"`
		} `xml:"PaymentInfo" json:"PaymentInfo"`
	} `xml:"PaymentInfos" json:"PaymentInfos"`
	ReconciliationIdentifiers struct {
		ReconciliationIdentifier []struct {
			ID   string `xml:"Id" json:"Id"`
			Type string `xml:"Type" json:"Type"`
		} `xml:"ReconciliationIdentifier" json:"ReconciliationIdentifier"`
	} `xml:"ReconciliationIdentifiers" json:"ReconciliationIdentifiers"`
}

// CallbackParser decodes gateway callback payloads into transaction results
type CallbackParser struct {
	tokenKey string
}

// NewCallbackParser creates a parser reading the order token from tokenKey
func NewCallbackParser(tokenKey string) *CallbackParser {
	if tokenKey == "" {
		tokenKey = DefaultOrderTokenKey
	}
	return &CallbackParser{tokenKey: tokenKey}
}

// TokenKey returns the PaymentInfo / transaction_info key of the order token
func (p *CallbackParser) TokenKey() string {
	return p.tokenKey
}

// Parse decodes an XML or JSON payload.
// An empty payload yields the NoResult sentinel and no error. A malformed
// payload yields NoResult and a PARSE_MALFORMED_PAYLOAD error that callers
// are expected to log and otherwise ignore.
func (p *CallbackParser) Parse(raw string) (domain.TransactionResult, error) {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return domain.NoTransactionResult, nil
	}

	if !looksStructured(payload) {
		decoded, err := url.QueryUnescape(payload)
		if err != nil {
			return domain.NoTransactionResult, domain.WrapError(domain.ErrorCodeParseMalformedPayload,
				"payload is neither markup nor url-encoded", err)
		}
		payload = strings.TrimSpace(decoded)
	}

	var doc apiResponse
	switch {
	case strings.HasPrefix(payload, "<"):
		if err := xml.Unmarshal([]byte(payload), &doc); err != nil {
			return domain.NoTransactionResult, domain.WrapError(domain.ErrorCodeParseMalformedPayload,
				"invalid xml document", err)
		}
	case strings.HasPrefix(payload, "{"):
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return domain.NoTransactionResult, domain.WrapError(domain.ErrorCodeParseMalformedPayload,
				"invalid json document", err)
		}
	default:
		return domain.NoTransactionResult, domain.NewDomainError(domain.ErrorCodeParseUnsupportedType,
			"payload is not xml or json")
	}

	return p.toTransactionResult(&doc), nil
}

// ParseForm reads a form-encoded callback. Form fields only fill values the
// xml document does not carry, so the document's order token wins over
// transaction_info[<key>].
func (p *CallbackParser) ParseForm(form url.Values) (domain.TransactionResult, error) {
	tr, err := p.Parse(form.Get(FormFieldXML))
	tr = tr.WithFallbacks(domain.CallbackFallbacks{
		ShopOrderID:          form.Get(FormFieldShopOrderID),
		OrderToken:           form.Get(transactionInfoField(p.tokenKey)),
		FraudRecommendation:  form.Get(FormFieldFraudRecommendation),
		MerchantErrorMessage: form.Get(FormFieldMerchantErrorMessage),
	})
	return tr, err
}

func (p *CallbackParser) toTransactionResult(doc *apiResponse) domain.TransactionResult {
	f := domain.TransactionResultFields{
		RawResultCode:                doc.Body.Result,
		ErrorCode:                    doc.Header.ErrorCode,
		ErrorMessage:                 doc.Header.ErrorMessage,
		MerchantErrorMessage:         doc.Body.MerchantErrorMessage,
		CardHolderErrorMessage:       doc.Body.CardHolderErrorMessage,
		CardHolderMessageMustBeShown: strings.EqualFold(strings.TrimSpace(doc.Body.CardHolderMessageMustBeShown), "true"),
	}

	// The gateway sends one transaction per callback; extra entries are ignored.
	if len(doc.Body.Transactions.Transaction) > 0 {
		t := doc.Body.Transactions.Transaction[0]
		f.TransactionID = t.TransactionID
		f.PaymentID = t.PaymentID
		f.AuthType = domain.AuthType(strings.TrimSpace(t.AuthType))
		f.TransactionStatus = strings.TrimSpace(t.TransactionStatus)
		f.ReservedAmount = parseAmount(t.ReservedAmount)
		f.CapturedAmount = parseAmount(t.CapturedAmount)
		f.ShopOrderID = strings.TrimSpace(t.ShopOrderID)

		if t.MaskedPan != "" || t.PaymentSchemeName != "" || t.CreditCardExpiry.Year != "" || t.CreditCardExpiry.Month != "" {
			f.Card = &domain.CardMetadata{
				MaskedNumber: t.MaskedPan,
				SchemeName:   t.PaymentSchemeName,
				ExpiryMonth:  strings.TrimSpace(t.CreditCardExpiry.Month),
				ExpiryYear:   strings.TrimSpace(t.CreditCardExpiry.Year),
			}
		}

		f.PaymentInfos = make(map[string]string, len(t.PaymentInfos.PaymentInfo))
		for _, info := range t.PaymentInfos.PaymentInfo {
			f.PaymentInfos[info.Name] = strings.TrimSpace(info.Value)
		}
		f.OrderToken = f.PaymentInfos[p.tokenKey]
		f.FraudRecommendation = f.PaymentInfos[FormFieldFraudRecommendation]

		for _, rid := range t.ReconciliationIdentifiers.ReconciliationIdentifier {
			if id := strings.TrimSpace(rid.ID); id != "" {
				f.ReconciliationIDs = append(f.ReconciliationIDs, id)
			}
		}
	}

	return domain.NewTransactionResult(f)
}

func looksStructured(s string) bool {
	return strings.HasPrefix(s, "<") || strings.HasPrefix(s, "{")
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func transactionInfoField(key string) string {
	return "transaction_info[" + key + "]"
}
