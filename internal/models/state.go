package models

// UserState marks how far a user has progressed through a multi-step
// input flow. Step is one of the Step* constants, Data carries the
// partial input collected so far. An absent state means idle.
type UserState struct {
	UserID int64                  `json:"user_id"`
	Step   string                 `json:"step"`
	Data   map[string]interface{} `json:"data"`
}

func (s *UserState) GetInt64(key string) int64 {
	if s == nil || s.Data == nil {
		return 0
	}
	val, ok := s.Data[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		// JSON round-trips through the redis store decode numbers as float64.
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *UserState) GetFloat64(key string) float64 {
	if s == nil || s.Data == nil {
		return 0
	}
	val, ok := s.Data[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func (s *UserState) GetString(key string) string {
	if s == nil || s.Data == nil {
		return ""
	}
	if str, ok := s.Data[key].(string); ok {
		return str
	}
	return ""
}
