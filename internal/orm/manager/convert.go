package manager

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/query"
)

// fallbackDateLayout is tried when a custom DateTime value is not in any
// layout cast recognises
const fallbackDateLayout = "02/01/2006 15:04"

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// textValue turns driver text into a string and leaves other values alone
func textValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// convertCustom converts a stored custom-field value to the column's
// semantic type
func convertCustom(col *metadata.ColumnDescriptor, raw any) (any, error) {
	raw = textValue(raw)
	if raw == nil {
		return nil, nil
	}
	s, isText := raw.(string)
	if !isText {
		return raw, nil
	}
	s = strings.TrimSpace(s)

	switch col.Type {
	case metadata.Boolean:
		if i, err := strconv.Atoi(s); err == nil {
			return i != 0, nil
		}
		return cast.ToBoolE(s)

	case metadata.DateTime:
		return parseDateTime(s), nil

	case metadata.Byte:
		return cast.ToUint8E(s)

	case metadata.Int16, metadata.Int32, metadata.Int64:
		return cast.ToInt64E(s)

	case metadata.Double, metadata.Single:
		return cast.ToFloat64E(s)

	case metadata.Decimal, metadata.Money:
		if underlying(col.GoType) != decimalType {
			return cast.ToFloat64E(s)
		}
		return decimal.NewFromString(s)

	case metadata.Guid:
		if underlying(col.GoType) != uuidType {
			return s, nil
		}
		return uuid.Parse(s)
	}
	return s, nil
}

// parseDateTime never fails: unparseable text becomes the zero time
func parseDateTime(s string) time.Time {
	if t, err := cast.ToTimeE(s); err == nil {
		return t
	}
	if t, err := time.Parse(fallbackDateLayout, s); err == nil {
		return t
	}
	return time.Time{}
}

func underlying(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// customText renders a custom column value in the canonical text form it is
// stored as. Unset values store NULL.
func customText(v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		v = rv.Elem().Interface()
	}

	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
		return x.Format(query.DateTimeLayout), nil
	case bool:
		return strconv.FormatBool(x), nil
	case []byte:
		return string(x), nil
	case decimal.Decimal:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return cast.ToStringE(v)
}
