package schema

// MaskRune is the character used for masked display of sensitive values.
const MaskRune = '•'

// MaskValue masks a sensitive value for display, keeping the last `visible`
// characters literal. The result has the same character length as the input.
// Values no longer than `visible` are fully masked rather than revealed.
func MaskValue(value string, visible int) string {
	runes := []rune(value)
	if visible < 0 {
		visible = 0
	}
	masked := make([]rune, len(runes))
	cut := len(runes) - visible
	if cut <= 0 {
		cut = len(runes)
	}
	for i := range runes {
		if i < cut {
			masked[i] = MaskRune
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}
