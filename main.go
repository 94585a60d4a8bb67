/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import (
	"github.com/josephgoksu/jenos-mcp/cmd"
	"github.com/josephgoksu/jenos-mcp/internal/logger"
)

func main() {
	defer logger.HandlePanic()
	cmd.Execute()
}
