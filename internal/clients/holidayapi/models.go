package holidayapi

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/tazhate/planner/internal/domain"
)

var (
	// ErrNotConfigured means the service key or endpoint is missing; no request was made
	ErrNotConfigured = errors.New("holiday API not configured")
	// ErrUnexpectedStatus is returned for non-200 HTTP responses
	ErrUnexpectedStatus = errors.New("holiday API unexpected status")
	// ErrMalformedResponse is returned when the document cannot be parsed
	ErrMalformedResponse = errors.New("holiday API malformed response")
)

// APIError is an explicit error code reported by the service
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("holiday API error %s: %s", e.Code, e.Message)
}

// callerGoneError marks a request abandoned by its own context
type callerGoneError struct {
	err error
}

func (e *callerGoneError) Error() string { return e.err.Error() }

func (e *callerGoneError) Unwrap() error { return e.err }

// Item is one entry of the getRestDeInfo response
type Item struct {
	DateKind  string `xml:"dateKind"`
	DateName  string `xml:"dateName"`
	IsHoliday string `xml:"isHoliday"`
	Locdate   string `xml:"locdate"`
	Seq       int    `xml:"seq"`
}

// Raw converts the item into the form the holiday cache normalizes
func (i Item) Raw() domain.RawHoliday {
	return domain.RawHoliday{
		IsHoliday: strings.EqualFold(strings.TrimSpace(i.IsHoliday), "Y"),
		Locdate:   strings.TrimSpace(i.Locdate),
		Name:      i.DateName,
	}
}

// page is one decoded result page, independent of wire format
type page struct {
	Items      []Item
	TotalCount int
}

type xmlResponse struct {
	XMLName xml.Name `xml:"response"`
	Header  struct {
		ResultCode string `xml:"resultCode"`
		ResultMsg  string `xml:"resultMsg"`
	} `xml:"header"`
	Body struct {
		Items struct {
			Item []Item `xml:"item"`
		} `xml:"items"`
		NumOfRows  int `xml:"numOfRows"`
		PageNo     int `xml:"pageNo"`
		TotalCount int `xml:"totalCount"`
	} `xml:"body"`
}

// xmlServiceError is the gateway envelope used for key and quota failures
type xmlServiceError struct {
	XMLName xml.Name `xml:"OpenAPI_ServiceResponse"`
	Header  struct {
		ErrMsg           string `xml:"errMsg"`
		ReturnAuthMsg    string `xml:"returnAuthMsg"`
		ReturnReasonCode string `xml:"returnReasonCode"`
	} `xml:"cmmMsgHeader"`
}
