package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/swag-lang/swc-sub002/micro"
	"github.com/swag-lang/swc-sub002/micro/builder"
	"github.com/swag-lang/swc-sub002/micro/encoder/amd64"
	"github.com/swag-lang/swc-sub002/micro/pass"
	"github.com/swag-lang/swc-sub002/micro/textfmt"
)

func callConvKind(name string) (micro.CallConvKind, error) {
	switch name {
	case "sysv":
		return micro.CallConvSysV, nil
	case "cdecl32":
		return micro.CallConvCdecl32, nil
	default:
		return 0, fmt.Errorf("unknown calling convention %q", name)
	}
}

func run(path, callConvName string, preservePersistent bool, out io.Writer) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	kind, err := callConvKind(callConvName)
	if err != nil {
		return err
	}

	b := builder.New()
	if err := textfmt.Parse(string(text), b); err != nil {
		return err
	}

	ctx := &pass.Context{
		FunctionName:           path,
		Encoder:                amd64.New(),
		Builder:                b,
		Instructions:           b.Instructions(),
		Operands:               b.Operands(),
		CallConvKind:           kind,
		PreservePersistentRegs: preservePersistent,
	}

	if err := pass.NewDefaultManager().Run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n", hex.EncodeToString(ctx.Code))

	if len(b.Relocations()) > 0 {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tCODE OFFSET\tTARGET")
		for _, r := range b.Relocations() {
			fmt.Fprintf(tw, "%s\t%d\t%#x\n", r.Kind, r.CodeOffset, r.TargetAddress)
		}
		tw.Flush()
	}

	return nil
}
