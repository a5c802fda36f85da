package callback

// Feedback page returned to the gateway for a processed callback
const feedbackTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Payment feedback</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; }
        .message { color: #6b7280; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="feedback" data-order-no="{{.OrderNo}}" data-decision="{{.Decision}}" data-confirmed="{{.Confirmed}}">
        <h1>OK</h1>
        {{if .Message}}<p class="message">{{.Message}}</p>{{end}}
    </div>
</body>
</html>
`

// Returned when the order is unknown or the caller could not be validated
const orderNotFoundTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Order not found</title>
</head>
<body>
    <div class="feedback order-not-found">
        <h1>Order not found</h1>
    </div>
</body>
</html>
`

// Wrapper the gateway injects its hosted payment form into
const callbackFormTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Payment</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background-color: #f5f5f5; }
        .summary { background: white; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
        .amount { font-size: 24px; font-weight: bold; }
    </style>
</head>
<body>
    <div class="summary">
        <div>Order {{.OrderNo}}</div>
        <div>{{.Items}} item(s)</div>
        <div class="amount">{{.Amount}} {{.Currency}}</div>
    </div>
    <div id="PensioPaymentForm"></div>
</body>
</html>
`
