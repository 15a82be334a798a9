// Package dataset generates a synthetic denormalized e-commerce table
// and publishes it as parquet parts so the service has something to
// query out of the box.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Row mirrors the denormalized olist_master layout: one row per order
// item with customer, product, payment, and review attributes flattened
// in.
type Row struct {
	OrderID           string  `parquet:"order_id"`
	CustomerID        string  `parquet:"customer_id"`
	CustomerCity      string  `parquet:"customer_city"`
	CustomerState     string  `parquet:"customer_state"`
	ProductID         string  `parquet:"product_id"`
	ProductCategory   string  `parquet:"product_category"`
	Price             float64 `parquet:"price"`
	FreightValue      float64 `parquet:"freight_value"`
	PaymentType       string  `parquet:"payment_type"`
	PaymentValue      float64 `parquet:"payment_value"`
	ReviewScore       int32   `parquet:"review_score"`
	OrderStatus       string  `parquet:"order_status"`
	PurchaseTimestamp int64   `parquet:"purchase_timestamp,timestamp"`
	DeliveryDelayDays int32   `parquet:"delivery_delay_days"`
	IsDelayed         bool    `parquet:"is_delayed"`
	IsDelivered       bool    `parquet:"is_delivered"`
}

type Generator struct {
	rnd      *rand.Rand
	sequence int64
	start    time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var (
	states = []string{"SP", "RJ", "MG", "RS", "PR", "SC", "BA", "DF", "GO", "ES"}
	cities = map[string][]string{
		"SP": {"sao paulo", "campinas", "guarulhos"},
		"RJ": {"rio de janeiro", "niteroi", "duque de caxias"},
		"MG": {"belo horizonte", "uberlandia", "contagem"},
	}
	categories = []string{
		"bed_bath_table", "health_beauty", "sports_leisure", "furniture_decor",
		"computers_accessories", "housewares", "watches_gifts", "telephony",
		"garden_tools", "auto",
	}
	paymentTypes = []string{"credit_card", "boleto", "voucher", "debit_card"}
)

func (g *Generator) NextRow() Row {
	g.sequence++

	state := pickOne(g.rnd, states)
	city := state
	if options, ok := cities[state]; ok {
		city = pickOne(g.rnd, options)
	}

	price := round2(10 + g.rnd.Float64()*490)
	freight := round2(5 + g.rnd.Float64()*45)

	delayDays := int32(0)
	delivered := g.rnd.Intn(100) < 97
	if delivered && g.rnd.Intn(100) < 8 {
		delayDays = int32(g.rnd.Intn(14) + 1)
	}

	status := "delivered"
	if !delivered {
		status = pickOne(g.rnd, []string{"shipped", "canceled", "processing"})
	}

	purchasedAt := g.start.Add(time.Duration(g.rnd.Intn(600*24)) * time.Hour)

	return Row{
		OrderID:           fmt.Sprintf("order-%08d", g.sequence),
		CustomerID:        fmt.Sprintf("customer-%06d", g.rnd.Intn(50000)+1),
		CustomerCity:      city,
		CustomerState:     state,
		ProductID:         fmt.Sprintf("product-%05d", g.rnd.Intn(9000)+1),
		ProductCategory:   pickOne(g.rnd, categories),
		Price:             price,
		FreightValue:      freight,
		PaymentType:       pickOne(g.rnd, paymentTypes),
		PaymentValue:      round2(price + freight),
		ReviewScore:       int32(g.rnd.Intn(5) + 1),
		OrderStatus:       status,
		PurchaseTimestamp: purchasedAt.UnixMilli(),
		DeliveryDelayDays: delayDays,
		IsDelayed:         delayDays > 0,
		IsDelivered:       delivered,
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
