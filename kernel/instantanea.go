package kernel

import (
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
)

// Dueños especiales de un marco en la instantánea
const (
	DuenioLibre      = 0
	DuenioKernel     = -1
	DuenioCompartido = -2
	DuenioReservado  = -3
)

// EstadoMarco describe un marco físico para el visor
type EstadoMarco struct {
	RefCount int
	Duenio   int  // pid, o uno de los Duenio*
	Tabla    bool // Página de una tabla de páginas
}

// PaginaVirtual es una página mapeada del proceso mostrado
type PaginaVirtual struct {
	VA   uint64
	PA   uint64
	Perm memoria.Permiso
}

// Instantanea es lo que el visor necesita para dibujar un cuadro
type Instantanea struct {
	Ticks   uint64
	Layout  memoria.Layout
	Marcos  []EstadoMarco
	PID     int // Proceso mostrado, 0 si no hay ninguno
	Paginas []PaginaVirtual
}

// Instantanea arma el estado actual de la memoria mostrando el proceso pid
func (k *Kernel) Instantanea(pid int) Instantanea {
	l := k.config.Layout
	inst := Instantanea{
		Ticks:  k.Ticks(),
		Layout: l,
		Marcos: make([]EstadoMarco, l.CantidadMarcos()),
	}

	for marco, refs := range k.mem.Contadores() {
		pa := uint64(marco) * l.TamPagina
		estado := EstadoMarco{RefCount: refs}
		switch {
		case pa == l.DireccionConsola:
			estado.Duenio = DuenioCompartido
		case pa >= l.InicioKernel && pa < l.TopePilaKernel:
			estado.Duenio = DuenioKernel
		case !k.mem.Asignable(pa):
			estado.Duenio = DuenioReservado
		}
		inst.Marcos[marco] = estado
	}

	for _, p := range k.procesos {
		if p.Estado == EstadoFree || p.Espacio == nil {
			continue
		}
		for _, pa := range p.Espacio.PaginasDeTabla() {
			m := &inst.Marcos[pa/l.TamPagina]
			m.Duenio = p.PID
			m.Tabla = true
		}
		mapeos := map[uint64]int{}
		p.Espacio.ContarMapeosUsuario(mapeos)
		for pa := range mapeos {
			m := &inst.Marcos[pa/l.TamPagina]
			switch {
			case m.Duenio == DuenioLibre:
				m.Duenio = p.PID
			case m.Duenio > 0 && m.Duenio != p.PID:
				m.Duenio = DuenioCompartido
			}
		}
	}

	if pid > 0 && pid < len(k.procesos) && k.procesos[pid].Estado != EstadoFree {
		inst.PID = pid
		esp := k.procesos[pid].Espacio
		for it := esp.Iterador(0); it.VA() < l.MemoriaVirtual; it.Siguiente() {
			if pa, ok := it.Marco(); ok {
				inst.Paginas = append(inst.Paginas, PaginaVirtual{VA: it.VA(), PA: pa, Perm: it.Perm()})
			}
		}
	}
	return inst
}

// memshow notifica al visor. Cada HZ/2 ticks rota el proceso mostrado al
// siguiente que tenga espacio de direcciones.
func (k *Kernel) memshow() {
	if k.visor == nil {
		return
	}

	ahora := k.Ticks()
	if k.visorUltimoTick == 0 || ahora-k.visorUltimoTick >= uint64(k.config.HZ/2) {
		k.visorUltimoTick = ahora
		k.visorMostrando = k.siguienteMostrable(k.visorMostrando)
	} else if k.visorMostrando != 0 && k.procesos[k.visorMostrando].Estado == EstadoFree {
		k.visorMostrando = k.siguienteMostrable(k.visorMostrando)
	}

	k.visor.Mostrar(k.Instantanea(k.visorMostrando))
}

func (k *Kernel) siguienteMostrable(desde int) int {
	n := len(k.procesos)
	for i := 1; i <= n; i++ {
		pid := (desde + i) % n
		if pid != 0 && k.procesos[pid].Estado != EstadoFree && k.procesos[pid].Espacio != nil {
			return pid
		}
	}
	return 0
}
