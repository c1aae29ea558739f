// Package mapindex implements composite indexing over dynamically keyed map
// containers: index declarations spanning one map level, projection of live
// document data into synthetic encoded index fields, and query rewriting
// against those fields.
package mapindex

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// Encode serializes an ordered sequence of scalar values into the store's
// canonical binary array encoding (BSON: a document keyed "0", "1", ...).
// The result is treated purely as an opaque, comparable byte string; there
// is no decode.
//
// Precondition: values compared as a range must carry the same type at each
// tuple position across encode calls. Mixed types are not defended against.
func Encode(values []interface{}) ([]byte, error) {
	arr := make(bson.D, 0, len(values))
	for i, v := range values {
		arr = append(arr, bson.E{Key: strconv.Itoa(i), Value: v})
	}
	raw, err := bson.Marshal(arr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode composite tuple: %w", err)
	}
	return raw, nil
}

// EncodeString is Encode with the result returned as a string, the form
// synthetic fields are persisted in.
func EncodeString(values []interface{}) (string, error) {
	raw, err := Encode(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
