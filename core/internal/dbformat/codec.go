package dbformat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ToDB converts an RM JSON document to its stored form: attribute keys and
// type names are replaced by their aliases and DV_ORDERED objects get the
// derived magnitude under MagnitudeKey.
func ToDB(rmJSON []byte) ([]byte, error) {
	v, err := decode(rmJSON)
	if err != nil {
		return nil, err
	}
	out, err := ToDBValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// FromDB converts a stored JSON document back to RM JSON.
func FromDB(dbJSON []byte) ([]byte, error) {
	v, err := decode(dbJSON)
	if err != nil {
		return nil, err
	}
	out, err := FromDBValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func decode(data []byte) (interface{}, error) {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("dbformat: %w", err)
	}
	return v, nil
}

// ToDBValue is ToDB on a decoded document.
func ToDBValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[string]interface{}:
		return objectToDB(v)

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			c, err := ToDBValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

func objectToDB(obj map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(obj)+1)
	var rmType string

	for k, v := range obj {
		if k == RMTypeKey {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("dbformat: %s must be a string", RMTypeKey)
			}
			a, err := TypeAlias(s)
			if err != nil {
				return nil, err
			}
			rmType = s
			out[TypeKey] = a
			continue
		}

		a, err := AttributeAlias(k)
		if err != nil {
			return nil, err
		}
		c, err := ToDBValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[a] = c
	}

	m, ok, err := magnitude(rmType, obj)
	if err != nil {
		return nil, err
	}
	if ok {
		out[MagnitudeKey] = m
	}
	return out, nil
}

// FromDBValue is FromDB on a decoded document.
func FromDBValue(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[string]interface{}:
		return objectFromDB(v)

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			c, err := FromDBValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

func objectFromDB(obj map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(obj))

	for k, v := range obj {
		switch k {
		case MagnitudeKey:
			continue

		case TypeKey:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("dbformat: %s must be a string", TypeKey)
			}
			t, err := TypeFromAlias(s)
			if err != nil {
				return nil, err
			}
			out[RMTypeKey] = t
			continue
		}

		n, err := AttributeFromAlias(k)
		if err != nil {
			return nil, err
		}
		c, err := FromDBValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		out[n] = c
	}
	return out, nil
}
