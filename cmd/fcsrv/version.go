package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"fcsrv/internal/onnx"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fcsrv %s (%s, %s/%s, onnxruntime=%t)\n",
				version, runtime.Version(), runtime.GOOS, runtime.GOARCH, onnx.Built)
		},
	}
}
