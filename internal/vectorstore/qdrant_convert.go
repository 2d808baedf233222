package vectorstore

import (
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// toQdrantFilter translates a Filter. nil stays nil.
func toQdrantFilter(f Filter) *qdrant.Filter {
	switch v := f.(type) {
	case nil:
		return nil
	case AndFilter:
		out := &qdrant.Filter{}
		for _, child := range v {
			out.Must = append(out.Must, toCondition(child))
		}
		return out
	case OrFilter:
		out := &qdrant.Filter{}
		for _, child := range v {
			out.Should = append(out.Should, toCondition(child))
		}
		if len(out.Should) == 0 {
			// An empty disjunction matches nothing; ids are never empty.
			out.Must = []*qdrant.Condition{qdrant.NewMatchKeyword(FieldID, "")}
		}
		return out
	case Cond:
		if v.Op == OpNe {
			return &qdrant.Filter{MustNot: []*qdrant.Condition{toCondition(Cond{Field: v.Field, Op: OpEq, Value: v.Value})}}
		}
		return &qdrant.Filter{Must: []*qdrant.Condition{toCondition(v)}}
	default:
		panic(fmt.Sprintf("vectorstore: unsupported filter type %T", f))
	}
}

func toCondition(f Filter) *qdrant.Condition {
	c, ok := f.(Cond)
	if !ok || c.Op == OpNe {
		return qdrant.NewFilterAsCondition(toQdrantFilter(f))
	}

	switch c.Op {
	case OpEq:
		switch val := c.Value.(type) {
		case string:
			return qdrant.NewMatchKeyword(c.Field, val)
		case bool:
			return qdrant.NewMatchBool(c.Field, val)
		case int64:
			return qdrant.NewMatchInt(c.Field, val)
		}
	case OpIn:
		if vals, ok := c.Value.([]string); ok {
			return qdrant.NewMatchKeywords(c.Field, vals...)
		}
	case OpGt, OpGte, OpLt, OpLte:
		n, ok := c.Value.(int64)
		if !ok {
			break
		}
		x := float64(n)
		r := &qdrant.Range{}
		switch c.Op {
		case OpGt:
			r.Gt = &x
		case OpGte:
			r.Gte = &x
		case OpLt:
			r.Lt = &x
		case OpLte:
			r.Lte = &x
		}
		return qdrant.NewRange(c.Field, r)
	}
	panic(fmt.Sprintf("vectorstore: cannot translate %s to a qdrant condition", c))
}

func recordPayload(r *Record) (map[string]*qdrant.Value, error) {
	payload := map[string]*qdrant.Value{
		FieldID:         stringValue(r.ID),
		FieldDocID:      stringValue(r.DocID),
		FieldText:       stringValue(r.Text),
		FieldSource:     stringValue(r.Source),
		FieldChunkIndex: intValue(int64(r.ChunkIndex)),
		FieldTimestamp:  intValue(r.Timestamp),
		FieldVersion:    intValue(int64(r.Version)),
		FieldExpiryAt:   intValue(r.ExpiryAt),
		FieldIsLatest:   &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: r.IsLatest}},
	}
	if len(r.Metadata) > 0 {
		// Round-trip through JSON so nested slices and maps have the shapes
		// TryValueMap accepts.
		raw, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		var plain map[string]any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		meta, err := qdrant.TryValueMap(map[string]any{FieldMetadata: plain})
		if err != nil {
			return nil, fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		payload[FieldMetadata] = meta[FieldMetadata]
	}
	return payload, nil
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func intValue(n int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
}

func recordFromPayload(p map[string]*qdrant.Value) (Record, error) {
	id := p[FieldID].GetStringValue()
	if id == "" {
		return Record{}, fmt.Errorf("point without %q payload", FieldID)
	}
	r := Record{
		ID:         id,
		DocID:      p[FieldDocID].GetStringValue(),
		Text:       p[FieldText].GetStringValue(),
		Source:     p[FieldSource].GetStringValue(),
		ChunkIndex: int(p[FieldChunkIndex].GetIntegerValue()),
		Timestamp:  p[FieldTimestamp].GetIntegerValue(),
		Version:    int(p[FieldVersion].GetIntegerValue()),
		ExpiryAt:   p[FieldExpiryAt].GetIntegerValue(),
		IsLatest:   p[FieldIsLatest].GetBoolValue(),
	}
	if s := p[FieldMetadata].GetStructValue(); s != nil {
		r.Metadata = structToMap(s)
	}
	return r, nil
}

func structToMap(s *qdrant.Struct) map[string]any {
	out := make(map[string]any, len(s.GetFields()))
	for k, v := range s.GetFields() {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	case *qdrant.Value_StructValue:
		return structToMap(k.StructValue)
	case *qdrant.Value_ListValue:
		items := k.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
