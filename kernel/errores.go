package kernel

import (
	"errors"
	"fmt"
)

var (
	ErrSinRanura      = errors.New("no hay ranuras libres en la tabla de procesos")
	ErrPIDInvalido    = errors.New("pid inválido")
	ErrKernelDetenido = errors.New("el kernel está detenido")
)

// PanicoKernel es una violación de invariante del propio núcleo: el kernel se detiene
type PanicoKernel struct {
	Mensaje string
}

func (p *PanicoKernel) Error() string {
	return "PANIC: " + p.Mensaje
}

// FalloPagina describe un acceso de usuario que la MMU no permitió
type FalloPagina struct {
	PID       int
	Direccion uint64
	Escritura bool
	Presente  bool // La página estaba mapeada: problema de protección
}

func (f *FalloPagina) Error() string {
	operacion := "read"
	if f.Escritura {
		operacion = "write"
	}
	problema := "missing page"
	if f.Presente {
		problema = "protection problem"
	}
	return fmt.Sprintf("Process %d page fault for %#x (%s %s)", f.PID, f.Direccion, operacion, problema)
}

// CodigoError arma el código de error que entregaría el hardware
func (f *FalloPagina) CodigoError() uint64 {
	codigo := PFErrUsuario
	if f.Presente {
		codigo |= PFErrPresente
	}
	if f.Escritura {
		codigo |= PFErrEscritura
	}
	return codigo
}
