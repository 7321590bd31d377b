package section

// Section identifies one block of the "Posição Detalhada dos Investimentos"
// table. Values are the exact header strings printed by the statement.
type Section string

const (
	PosFixado Section = "PÓS-FIXADO"
	PreFixado Section = "PRÉ-FIXADO"
	JuroReal  Section = "JURO REAL - INFLAÇÃO"
	Multi     Section = "MULTIMERCADOS"

	// Unknown is the fold state before the first header is seen.
	Unknown Section = ""
)

// All lists the known sections in statement order.
func All() []Section {
	return []Section{PosFixado, PreFixado, JuroReal, Multi}
}

// Key returns the snake_case identifier used in JSON output and grouping.
func (s Section) Key() string {
	switch s {
	case PosFixado:
		return "pos_fixado"
	case PreFixado:
		return "pre_fixado"
	case JuroReal:
		return "juro_real_inflacao"
	case Multi:
		return "multimercados"
	default:
		return "desconhecido"
	}
}

// Top-level branches of the exported hierarchy.
const (
	GroupRendaFixa    = "renda_fixa"
	GroupAlternativos = "alternativos"
)

// Group returns the top-level branch the section belongs to.
func (s Section) Group() string {
	switch s {
	case Multi:
		return GroupAlternativos
	case Unknown:
		return ""
	}
	return GroupRendaFixa
}

// FromKey maps a snake_case identifier back to its Section. Unrecognized keys
// yield Unknown.
func FromKey(key string) Section {
	for _, s := range All() {
		if s.Key() == key {
			return s
		}
	}
	return Unknown
}
