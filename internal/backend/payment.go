package backend

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/qorikusi/storefront/internal/domain/payment"
)

var (
	methodWire = map[payment.Method]string{
		payment.MethodCard:     "Tarjeta",
		payment.MethodWallet:   "Billetera",
		payment.MethodTransfer: "Transferencia",
	}
	receiptWire = map[payment.ReceiptType]string{
		payment.ReceiptIndividual: "Boleta",
		payment.ReceiptBusiness:   "Factura",
	}
	statusFromWire = map[string]payment.Status{
		"Completado": payment.StatusCompleted,
		"Pendiente":  payment.StatusPending,
		"Fallido":    payment.StatusFailed,
	}
)

func methodFromWire(s string) payment.Method {
	for m, w := range methodWire {
		if w == s {
			return m
		}
	}
	return payment.Method(s)
}

// PaymentService calls the payment service. Every call requires a token.
type PaymentService struct {
	c *Client
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(c *Client) *PaymentService {
	return &PaymentService{c: c}
}

var _ payment.Backend = (*PaymentService)(nil)

// Process charges an order and returns the issued receipt. The receipt's
// payment status tells whether the charge completed.
func (s *PaymentService) Process(ctx context.Context, req payment.Request) (*payment.Receipt, error) {
	method, ok := methodWire[req.Method]
	if !ok {
		return nil, errors.Errorf("unknown payment method %q", req.Method)
	}
	receiptType, ok := receiptWire[req.ReceiptType]
	if !ok {
		return nil, errors.Errorf("unknown receipt type %q", req.ReceiptType)
	}

	r := payment.Receipt{Type: req.ReceiptType}
	err := s.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/client/payments",
		body: func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("uuidPedido", func(e *jx.Encoder) { e.Str(req.OrderID) })
				e.Field("monto", func(e *jx.Encoder) { encodeDecimal(e, req.Amount) })
				e.Field("metodoPago", func(e *jx.Encoder) { e.Str(method) })
				e.Field("tipoComprobante", func(e *jx.Encoder) { e.Str(receiptType) })
				e.Field("clienteDocumento", func(e *jx.Encoder) { e.Str(req.CustomerID) })
				e.Field("clienteNombre", func(e *jx.Encoder) { e.Str(req.CustomerName) })
			})
		},
		decode: func(d *jx.Decoder) error { return decodeReceipt(d, &r) },
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// decodeReceipt reads a Boleta or Factura. Which one it is follows from the
// id field present.
func decodeReceipt(d *jx.Decoder, r *payment.Receipt) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "uuidBoleta":
			r.ID, err = decodeString(d)
			r.Type = payment.ReceiptIndividual
		case "uuidFactura":
			r.ID, err = decodeString(d)
			r.Type = payment.ReceiptBusiness
		case "dni", "ruc":
			r.TaxID, err = decodeString(d)
		case "nombre", "razonSocial":
			r.Name, err = decodeString(d)
		case "fechaEmision":
			r.IssuedAt, err = decodeTime(d)
		case "montoTotal":
			r.Amount, err = decodeDecimal(d)
		case "serie":
			r.Series, err = decodeString(d)
		case "numero":
			r.Number, err = decodeString(d)
		case "pago":
			err = decodePayment(d, &r.Payment)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodePayment(d *jx.Decoder, p *payment.Payment) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var (
			s   string
			err error
		)
		switch key {
		case "uuidPago":
			p.ID, err = decodeString(d)
		case "uuidPedido":
			p.OrderID, err = decodeString(d)
		case "monto":
			p.Amount, err = decodeDecimal(d)
		case "metodoPago":
			s, err = decodeString(d)
			p.Method = methodFromWire(s)
		case "estadoPago":
			s, err = decodeString(d)
			p.Status = statusFromWire[s]
			if p.Status == "" {
				p.Status = payment.Status(s)
			}
		case "fechaPago":
			p.PaidAt, err = decodeTime(d)
		case "numeroOperacion":
			p.OperationNumber, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
