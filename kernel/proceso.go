package kernel

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
)

// Estado del ciclo de vida de una ranura de la tabla de procesos
type Estado int

const (
	EstadoFree Estado = iota
	EstadoRunnable
	EstadoBlocked
	EstadoBroken
)

func (e Estado) String() string {
	switch e {
	case EstadoFree:
		return "FREE"
	case EstadoRunnable:
		return "RUNNABLE"
	case EstadoBlocked:
		return "BLOCKED"
	case EstadoBroken:
		return "BROKEN"
	default:
		return fmt.Sprintf("Estado(%d)", int(e))
	}
}

// Registros es la instantánea de registros que guarda el hardware al entrar al kernel
type Registros struct {
	RAX         uint64 // Número de syscall a la entrada, valor de retorno a la salida
	RDI         uint64 // Primer argumento
	RIP         uint64
	RSP         uint64
	IntNo       uint64 // Número de excepción
	CodigoError uint64 // Código de error de la excepción (bits PFErr*)
	CR2         uint64 // Dirección que causó el page fault
}

// Proceso es el descriptor de una ranura de la tabla
type Proceso struct {
	PID     int
	Estado  Estado
	Regs    Registros // Válidos solo mientras el proceso no está ejecutando
	Espacio *memoria.EspacioDirecciones

	despertarEn uint64 // Tick en que un proceso BLOCKED vuelve a RUNNABLE
	Metricas    MetricasProceso
}

func (p *Proceso) String() string {
	return fmt.Sprintf("Proceso{PID: %d, Estado: %s, RIP: %#x, RSP: %#x}",
		p.PID, p.Estado, p.Regs.RIP, p.Regs.RSP)
}

// liberarRanura deja la ranura como en el arranque
func (p *Proceso) liberarRanura() {
	p.Estado = EstadoFree
	p.Regs = Registros{}
	p.Espacio = nil
	p.despertarEn = 0
	p.Metricas = MetricasProceso{}
}
