package main

import (
	"github.com/DrSkyle/cloudgov/cmd/cloudgov/commands"
	"github.com/shopspring/decimal"
)

func main() {
	// Money is emitted as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
	commands.Execute()
}
