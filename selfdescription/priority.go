package selfdescription

// NormalizePriority maps a priority given as name or number to 0, 1 or 2.
// HIGH and 2 map to 2, MEDIUM and 1 map to 1, everything else (LOW, 0,
// unknown names, other numbers, nil) maps to 0.
func NormalizePriority(priority any) int {
	switch p := priority.(type) {
	case string:
		switch p {
		case "HIGH":
			return PriorityHigh
		case "MEDIUM":
			return PriorityMedium
		}
	case int:
		return fromNumber(float64(p))
	case int8:
		return fromNumber(float64(p))
	case int16:
		return fromNumber(float64(p))
	case int32:
		return fromNumber(float64(p))
	case int64:
		return fromNumber(float64(p))
	case uint:
		return fromNumber(float64(p))
	case uint8:
		return fromNumber(float64(p))
	case uint16:
		return fromNumber(float64(p))
	case uint32:
		return fromNumber(float64(p))
	case uint64:
		return fromNumber(float64(p))
	case float32:
		return fromNumber(float64(p))
	case float64:
		return fromNumber(p)
	}
	return PriorityLow
}

func fromNumber(n float64) int {
	switch n {
	case PriorityHigh:
		return PriorityHigh
	case PriorityMedium:
		return PriorityMedium
	}
	return PriorityLow
}
