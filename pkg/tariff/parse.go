package tariff

import (
	"strings"
)

// ParsedCode is the decomposition of a tariff code such as
// E-1R-AGILE-24-09-01-A: kind prefix, register, embedded product code and
// region letter.
type ParsedCode struct {
	Kind        string
	Register    string
	ProductCode string
	Region      string
}

// ParseCode splits a tariff code into its parts. Some tariffs carry extra
// numeric distributor fragments, so the last single-character segment is
// taken as region and everything between register and region as the product
// code. ProductCode is empty when the code cannot be decomposed.
func ParseCode(tariffCode string) ParsedCode {
	parts := strings.Split(tariffCode, "-")
	if len(parts) < 3 {
		var kind string
		if len(parts) > 0 && parts[0] != "" {
			kind = parts[0][:1]
		}
		return ParsedCode{Kind: kind}
	}

	p := ParsedCode{
		Kind:     parts[0][:1],
		Register: parts[1],
	}
	core := parts[2:]
	if last := parts[len(parts)-1]; len(last) == 1 {
		p.Region = last
		core = parts[2 : len(parts)-1]
	}
	p.ProductCode = strings.Join(core, "-")
	return p
}
