package superset

import (
	"fmt"
	"net/url"
	"strings"
)

type risonFilter struct {
	Col   string
	Opr   string
	Value string
}

// risonQuery encodes the list-endpoint q parameter, e.g.
// (filters:!((col:slice_name,opr:ct,value:'sales')),page:0,page_size:20)
func risonQuery(filters []risonFilter, page, pageSize int) string {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	var b strings.Builder
	b.WriteString("(")
	if len(filters) > 0 {
		b.WriteString("filters:!(")
		for i, f := range filters {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "(col:%s,opr:%s,value:%s)", f.Col, f.Opr, risonString(f.Value))
		}
		b.WriteString("),")
	}
	fmt.Fprintf(&b, "page:%d,page_size:%d)", page, pageSize)
	return url.QueryEscape(b.String())
}

// risonString quotes s; ! and ' are escaped with !
func risonString(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	s = strings.ReplaceAll(s, "'", "!'")
	return "'" + s + "'"
}
