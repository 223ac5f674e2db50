package holidayapi

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
)

const successCode = "00"

// parseXML decodes either a regular response or the gateway error envelope
func parseXML(data []byte) (*page, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if root == "OpenAPI_ServiceResponse" {
		var env xmlServiceError
		if err := xml.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		msg := env.Header.ReturnAuthMsg
		if msg == "" {
			msg = env.Header.ErrMsg
		}
		return nil, &APIError{Code: env.Header.ReturnReasonCode, Message: msg}
	}
	if root != "response" {
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrMalformedResponse, root)
	}

	var resp xmlResponse
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.Header.ResultCode != successCode {
		msg := resp.Header.ResultMsg
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &APIError{Code: resp.Header.ResultCode, Message: msg}
	}

	return &page{Items: resp.Body.Items.Item, TotalCount: resp.Body.TotalCount}, nil
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", errors.New("empty document")
		}
		if err != nil {
			return "", err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// parseJSON decodes the _type=json variant. The service returns "items" as an
// empty string when there are no results and "item" as an object when there
// is exactly one, so the shape is walked by hand.
func parseJSON(data []byte) (*page, error) {
	code, err := jsonparser.GetString(data, "response", "header", "resultCode")
	if err != nil {
		return nil, fmt.Errorf("%w: resultCode: %v", ErrMalformedResponse, err)
	}
	if code != successCode {
		msg, _ := jsonparser.GetString(data, "response", "header", "resultMsg")
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &APIError{Code: code, Message: msg}
	}

	p := &page{}
	if total, err := jsonparser.GetInt(data, "response", "body", "totalCount"); err == nil {
		p.TotalCount = int(total)
	}

	value, dataType, _, err := jsonparser.Get(data, "response", "body", "items", "item")
	if err != nil && dataType != jsonparser.NotExist {
		return nil, fmt.Errorf("%w: items: %v", ErrMalformedResponse, err)
	}

	switch dataType {
	case jsonparser.NotExist:
		return p, nil
	case jsonparser.Object:
		item, err := parseJSONItem(value)
		if err != nil {
			return nil, err
		}
		p.Items = append(p.Items, item)
	case jsonparser.Array:
		var itemErr error
		_, err := jsonparser.ArrayEach(value, func(v []byte, t jsonparser.ValueType, _ int, _ error) {
			if itemErr != nil {
				return
			}
			if t != jsonparser.Object {
				itemErr = fmt.Errorf("%w: item is %s", ErrMalformedResponse, t)
				return
			}
			item, err := parseJSONItem(v)
			if err != nil {
				itemErr = err
				return
			}
			p.Items = append(p.Items, item)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if itemErr != nil {
			return nil, itemErr
		}
	default:
		return nil, fmt.Errorf("%w: item is %s", ErrMalformedResponse, dataType)
	}

	return p, nil
}

func parseJSONItem(data []byte) (Item, error) {
	var item Item
	item.IsHoliday, _ = jsonparser.GetString(data, "isHoliday")
	item.DateName, _ = jsonparser.GetString(data, "dateName")
	item.DateKind, _ = jsonparser.GetString(data, "dateKind")
	if seq, err := jsonparser.GetInt(data, "seq"); err == nil {
		item.Seq = int(seq)
	}

	// locdate is a number in practice, occasionally a string
	v, t, _, err := jsonparser.Get(data, "locdate")
	switch {
	case t == jsonparser.NotExist:
	case err != nil:
		return item, fmt.Errorf("%w: locdate: %v", ErrMalformedResponse, err)
	case t == jsonparser.Number || t == jsonparser.String:
		item.Locdate = string(v)
	default:
		return item, fmt.Errorf("%w: locdate is %s", ErrMalformedResponse, t)
	}
	return item, nil
}
