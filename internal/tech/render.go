package tech

import (
	"regexp"
	"strings"

	"github.com/sr-lab/GLITCH-sub000/api"
)

var yamlPlain = regexp.MustCompile(`^[A-Za-z_/][A-Za-z0-9_./-]*$`)

var yamlReserved = map[string]bool{
	"yes": true, "no": true, "on": true, "off": true,
	"true": true, "false": true, "null": true, "y": true, "n": true,
}

// Literal renders value as a literal of the dialect. quote is the quote
// character the value was written with in the source (0 when it was bare
// or is being inserted); indent is the indentation of the attribute line,
// used by multi-line literals.
func (p *Profile) Literal(value string, spec *AttrSpec, quote byte, indent string) string {
	if spec != nil && spec.Bool && (value == "true" || value == "false") {
		return value
	}
	if strings.Contains(value, "\n") {
		return p.multiline(value, indent)
	}
	switch quote {
	case '\'', '"':
		return p.quoted(value, quote)
	}
	if p.Tech == api.Ansible && yamlPlain.MatchString(value) && !yamlReserved[strings.ToLower(value)] {
		return value
	}
	return p.quoted(value, p.Quote)
}

// AttrLine renders a whole attribute line, without the trailing newline.
func (p *Profile) AttrLine(indent, key, literal string) string {
	return indent + key + p.Assign + literal + p.Separator
}

func (p *Profile) quoted(value string, quote byte) string {
	q := string(quote)
	switch p.Tech {
	case api.Puppet:
		if quote == '\'' {
			r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
			return q + r.Replace(value) + q
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\t", `\t`)
		return q + r.Replace(value) + q
	case api.Ansible:
		if quote == '\'' {
			return q + strings.ReplaceAll(value, `'`, `''`) + q
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
		return q + r.Replace(value) + q
	default:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", "$${", "%{", "%%{", "\n", `\n`, "\t", `\t`)
		return `"` + r.Replace(value) + `"`
	}
}

func (p *Profile) multiline(value, indent string) string {
	body := indent + p.Indent
	switch p.Tech {
	case api.Ansible:
		header := "|-"
		if strings.HasSuffix(value, "\n") {
			header = "|"
			value = strings.TrimSuffix(value, "\n")
		}
		return header + "\n" + indentLines(value, body)
	case api.Terraform:
		if !strings.HasSuffix(value, "\n") {
			return p.quoted(value, '"')
		}
		return "<<-EOT\n" + indentLines(strings.TrimSuffix(value, "\n"), body) + "\n" + body + "EOT"
	default:
		return p.quoted(value, '"')
	}
}

func indentLines(s, indent string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = indent + l
		}
	}
	return strings.Join(lines, "\n")
}
