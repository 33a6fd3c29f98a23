package api

import (
	"encoding/json"
	"fmt"

	"github.com/querybridge/querybridge/internal/schema"
)

type columnList []string

func (c *columnList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("columns must be an array of names or a comma-separated string")
	}
	*c = schema.ParseColumns(text)
	return nil
}
