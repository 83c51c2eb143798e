package kernel

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// Números de interrupción
const (
	IntPageFault = 14
	IntTimer     = 32
)

// Bits del código de error de un page fault
const (
	PFErrPresente  uint64 = 1
	PFErrEscritura uint64 = 2
	PFErrUsuario   uint64 = 4
)

// Excepcion atiende una interrupción o excepción. regs son los registros que
// guardó el hardware; si había un proceso ejecutando pasan a ser los suyos.
func (k *Kernel) Excepcion(regs Registros) (Decision, error) {
	if k.detenido {
		return Decision{Tipo: Detener}, ErrKernelDetenido
	}

	deUsuario := k.ejecutando && k.actual != nil
	if deUsuario {
		k.actual.Regs = regs
	}

	// Un fault del kernel no refresca el visor: el estado puede estar roto
	if regs.IntNo != IntPageFault || regs.CodigoError&PFErrUsuario != 0 {
		k.memshow()
	}
	if k.consultarParada() {
		return k.detener()
	}

	switch regs.IntNo {
	case IntTimer:
		k.ticks.Add(1)
		k.despertarDormidos()
		if k.controlador != nil {
			k.controlador.Ack()
		}
		return k.Planificar()

	case IntPageFault:
		escritura := regs.CodigoError&PFErrEscritura != 0
		presente := regs.CodigoError&PFErrPresente != 0
		if !deUsuario || regs.CodigoError&PFErrUsuario == 0 {
			operacion := "read"
			if escritura {
				operacion = "write"
			}
			problema := "missing page"
			if presente {
				problema = "protection problem"
			}
			return k.panico(fmt.Sprintf("Kernel page fault for %#x (%s %s, rip=%#x)!",
				regs.CR2, operacion, problema, regs.RIP))
		}

		fallo := &FalloPagina{PID: k.actual.PID, Direccion: regs.CR2, Escritura: escritura, Presente: presente}
		utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Page Fault - %s", fallo.PID, fallo))
		k.actual.contarFalloPagina()
		k.actual.Estado = EstadoBroken

	default:
		return k.panico(fmt.Sprintf("Unexpected exception %d!", regs.IntNo))
	}

	if deUsuario && k.actual.Estado == EstadoRunnable {
		return k.Ejecutar(k.actual)
	}
	return k.Planificar()
}

// despertarDormidos pasa a RUNNABLE los procesos cuyo plazo de sleep venció
func (k *Kernel) despertarDormidos() {
	ahora := k.Ticks()
	for _, p := range k.procesos {
		if p.Estado == EstadoBlocked && p.despertarEn <= ahora {
			p.Estado = EstadoRunnable
			p.despertarEn = 0
			utils.InfoLog.Debug("Proceso despertado", "pid", p.PID, "tick", ahora)
		}
	}
}
