// Package eweb talks to the vendor's eWebService SOAP endpoint and converts
// its catalog payload into the plain shapes the rest of the application
// consumes. The SOAP envelope, element names, and string-typed numerics of
// the vendor wire format never leak past this package.
package eweb

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is one catalog row as the sync pipeline consumes it:
// a SKU, its quantity on hand, and the descriptive attributes the
// analytics endpoints read. Prices and QOH are decimals; optional
// attributes are nil when the vendor sent nothing usable.
type CatalogItem struct {
	SKU            string
	Barcode        *string
	BrandID        *string
	CategoryID     *int
	VendorID       *string
	Description    *string
	RetailPrice    *decimal.Decimal
	CurrentPrice   *decimal.Decimal
	Price          *decimal.Decimal
	QOH            decimal.Decimal
	UOM            *string
	UpdateDateTime *time.Time
}

// authenticationInfo matches the service's AuthenticationInfo complex type.
type authenticationInfo struct {
	ClientNum    int    `xml:"ClientNum"`
	Password     string `xml:"Password"`
	SecurityCode string `xml:"SecurityCode"`
}

// getAllActiveItemsRequest is the SOAP 1.1 request envelope for
// GetAllActiveItems.
type getAllActiveItemsRequest struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	SoapNS  string   `xml:"xmlns:soap,attr"`
	Body    struct {
		Call struct {
			XMLName xml.Name           `xml:"GetAllActiveItems"`
			NS      string             `xml:"xmlns,attr"`
			Auth    authenticationInfo `xml:"AuthenticationInfo"`
		}
	} `xml:"soap:Body"`
}

// getAllActiveItemsResponse is the response envelope. Namespaces are ignored
// on decode; element local names carry the structure.
type getAllActiveItemsResponse struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result struct {
				Items []wireActiveItem `xml:"ActiveItem"`
			} `xml:"GetAllActiveItemsResult"`
		} `xml:"GetAllActiveItemsResponse"`
		Fault *soapFault `xml:"Fault"`
	} `xml:"Body"`
}

// soapFault carries a SOAP 1.1 fault payload.
type soapFault struct {
	Code   string `xml:"faultcode"`
	Reason string `xml:"faultstring"`
}

// wireActiveItem is the vendor's ActiveItem element. Everything is decoded
// as text first; numeric and temporal fields are parsed leniently during
// normalization because the feed is known to emit blanks, sentinel dates,
// and bare numbers interchangeably.
type wireActiveItem struct {
	SKU            string `xml:"SKU"`
	Barcode        string `xml:"Barcode"`
	BrandID        string `xml:"BrandID"`
	CategoryID     string `xml:"CategoryID"`
	VendorID       string `xml:"VendorID"`
	Description    string `xml:"Description"`
	Price          string `xml:"Price"`
	CurrentPrice   string `xml:"CurrentPrice"`
	RetailPrice    string `xml:"RetailPrice"`
	TotalAvailQOH  string `xml:"TotalAvailQOH"`
	UOM            string `xml:"UOM"`
	UpdateDateTime string `xml:"UpdateDateTime"`
}

// normalize converts a wire row into a CatalogItem. It reports false when
// the row has no SKU, which callers count and skip.
func (w wireActiveItem) normalize() (CatalogItem, bool) {
	sku := strings.TrimSpace(w.SKU)
	if sku == "" {
		return CatalogItem{}, false
	}
	item := CatalogItem{
		SKU:            sku,
		Barcode:        strOrNil(w.Barcode),
		BrandID:        strOrNil(w.BrandID),
		CategoryID:     intOrNil(w.CategoryID),
		VendorID:       strOrNil(w.VendorID),
		Description:    strOrNil(w.Description),
		RetailPrice:    decOrNil(w.RetailPrice),
		CurrentPrice:   decOrNil(w.CurrentPrice),
		Price:          decOrNil(w.Price),
		QOH:            decOrZero(w.TotalAvailQOH),
		UOM:            strOrNil(w.UOM),
		UpdateDateTime: timeOrNil(w.UpdateDateTime),
	}
	return item, true
}

func strOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func intOrNil(s string) *int {
	d := decOrNil(s)
	if d == nil {
		return nil
	}
	n := int(d.IntPart())
	return &n
}

func decOrNil(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func decOrZero(s string) decimal.Decimal {
	if d := decOrNil(s); d != nil {
		return *d
	}
	return decimal.Zero
}

// timeOrNil parses the feed's ISO-ish datetimes. The service uses
// "0001-01-01..." as its null sentinel.
func timeOrNil(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0001-01-01") {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}
