package nwchem

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	geometryFile = "geometry.xyz"
	restartFile  = "restart.movecs"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Input renders an nwchem input deck
func Input(p *Params) string {
	name := p.FileName()
	builder := strings.Builder{}
	builder.WriteString("echo\n")
	builder.WriteString("start " + name + "\n")
	builder.WriteString(fmt.Sprintf("title %q\n", p.Label))
	builder.WriteString("permanent_dir .\nscratch_dir .\n\n")
	builder.WriteString("charge " + strconv.Itoa(p.Charge) + "\n\n")
	builder.WriteString("geometry units angstroms noautoz nocenter\n")
	builder.WriteString("  load " + geometryFile + "\n")
	builder.WriteString("end\n\n")
	builder.WriteString("basis\n")
	builder.WriteString("  * library " + p.Basis + "\n")
	builder.WriteString("end\n\n")
	builder.WriteString("dft\n")
	builder.WriteString("  xc " + p.XC + "\n")
	builder.WriteString("  mult " + strconv.Itoa(p.Multiplicity) + "\n")
	builder.WriteString("  convergence energy " + formatFloat(p.EnergyConv) + " density " + formatFloat(p.DensityConv) + "\n")
	builder.WriteString("  iterations " + strconv.Itoa(p.MaxIter) + "\n")
	if p.Task == TaskRTTDDFT {
		builder.WriteString("  vectors input " + restartFile + "\n")
	}
	builder.WriteString("end\n\n")
	if p.Task == TaskGroundState {
		builder.WriteString("task dft energy\n")
		return builder.String()
	}
	dt := p.TimeStep * attosecondToAU
	builder.WriteString("rt_tddft\n")
	builder.WriteString("  tmax " + strconv.FormatFloat(float64(p.Steps)*dt, 'f', 2, 64) + "\n")
	builder.WriteString("  dt " + strconv.FormatFloat(dt, 'f', 2, 64) + "\n")
	kick := "kick_" + p.Polarization
	builder.WriteString(fmt.Sprintf("  field %q\n", kick))
	builder.WriteString("    type delta\n")
	builder.WriteString("    polarization " + p.Polarization + "\n")
	builder.WriteString("    max " + formatFloat(p.Strength) + "\n")
	builder.WriteString("  end\n")
	builder.WriteString(fmt.Sprintf("  excite %q with %q\n", "system", kick))
	builder.WriteString("  print dipole\n")
	builder.WriteString("end\n\n")
	builder.WriteString("task dft rt_tddft\n")
	return builder.String()
}
