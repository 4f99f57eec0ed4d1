package gpaw

import (
	"fmt"
	"strings"
)

const (
	geometryFile = "geometry.xyz"
	restartFile  = "restart.gpw"
	dipoleFile   = "dm.dat"
)

// Script renders the python driver for the task
func Script(p *Params) string {
	builder := strings.Builder{}
	if p.Task == TaskGroundState {
		builder.WriteString("from ase.io import read\n")
		builder.WriteString("from gpaw import GPAW\n\n")
		builder.WriteString(fmt.Sprintf("atoms = read('%s')\n", geometryFile))
		builder.WriteString(fmt.Sprintf("atoms.center(vacuum=%v)\n", p.Vacuum))
		builder.WriteString(fmt.Sprintf("calc = GPAW(mode='%s', xc='%s', h=%v, txt='gs.txt')\n", p.Mode, p.XC, p.Spacing))
		builder.WriteString("atoms.calc = calc\n")
		builder.WriteString("energy = atoms.get_potential_energy()\n")
		builder.WriteString("calc.write('gs.gpw', mode='all')\n")
		return builder.String()
	}
	builder.WriteString("from gpaw.lcaotddft import LCAOTDDFT\n")
	builder.WriteString("from gpaw.lcaotddft.dipolemomentwriter import DipoleMomentWriter\n\n")
	builder.WriteString(fmt.Sprintf("td_calc = LCAOTDDFT('%s', txt='td.txt')\n", restartFile))
	builder.WriteString(fmt.Sprintf("DipoleMomentWriter(td_calc, '%s')\n", dipoleFile))
	builder.WriteString(fmt.Sprintf("td_calc.absorption_kick("+p.kick()+")\n", p.Strength))
	builder.WriteString(fmt.Sprintf("td_calc.propagate(%v, %d)\n", p.TimeStep, p.Steps))
	builder.WriteString("td_calc.write('td.gpw', mode='all')\n")
	return builder.String()
}
