package server

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func stringField(req *structpb.Struct, name string) string {
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

// intField reads an integral number. present is false when the field is absent.
func intField(req *structpb.Struct, name string) (value int, present bool, err error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, true, fmt.Errorf("%s must be a number", name)
	}
	if num.NumberValue != math.Trunc(num.NumberValue) || math.Abs(num.NumberValue) > math.MaxInt32 {
		return 0, true, fmt.Errorf("%s must be an integer", name)
	}
	return int(num.NumberValue), true, nil
}

func failure(msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(false),
		"error":   structpb.NewStringValue(msg),
	}}
}

func success(fields map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	out.Fields["success"] = structpb.NewBoolValue(true)
	return out, nil
}

// toValue converts any JSON-encodable value.
func toValue(v interface{}) (*structpb.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Value{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}
