// varcal: variant quality score recalibration for VCF files.
// Copyright (c) 2020-2021 the varcal authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/vqlab/varcal/blob/master/LICENSE.txt>.

// varcal recalibrates the quality scores of variant calls in VCF
// files against a Gaussian mixture model trained on the annotation
// profile of the full call set.
//
// Please see https://github.com/vqlab/varcal for a documentation of
// the tool.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/vqlab/varcal/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: recalibrate, vcf-to-sites")
	fmt.Fprint(os.Stderr, "\n", cmd.RecalibrateHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.VcfToSitesHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprintln(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "recalibrate":
		err = cmd.Recalibrate()
	case "vcf-to-sites":
		err = cmd.VcfToSites()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
