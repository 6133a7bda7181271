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

package cmd

import (
	"flag"
	"os"

	"github.com/vqlab/varcal/sites"
)

// VcfToSitesHelp is the help string for this command.
const VcfToSitesHelp = "vcf-to-sites parameters:\n" +
	"varcal vcf-to-sites vcf-file sites-file\n" +
	"[--log-path path]\n"

// VcfToSites implements the varcal vcf-to-sites command.
func VcfToSites() error {
	var logPath string

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 4, VcfToSitesHelp)

	input := getFilename(os.Args[2], VcfToSitesHelp)
	output := getFilename(os.Args[3], VcfToSitesHelp)

	setLogOutput(logPath)

	s, err := sites.FromVcfFile(input)
	if err != nil {
		return err
	}
	return sites.ToSitesFile(s, output)
}
