package kernel

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// Números de llamada al sistema (registro RAX a la entrada)
const (
	SyscallGetPID    uint64 = 1
	SyscallYield     uint64 = 2
	SyscallPanic     uint64 = 3
	SyscallPageAlloc uint64 = 4
	SyscallFork      uint64 = 5
	SyscallExit      uint64 = 6
	SyscallKill      uint64 = 7
	SyscallSleep     uint64 = 8
)

// RetornoError es el -1 que ve el proceso cuando una syscall falla
const RetornoError = ^uint64(0)

// NombreSyscall devuelve la operación de mensaje asociada a un número de syscall
func NombreSyscall(numero uint64) string {
	switch numero {
	case SyscallGetPID:
		return utils.OperacionGetPID
	case SyscallYield:
		return utils.OperacionYield
	case SyscallPanic:
		return utils.OperacionPanic
	case SyscallPageAlloc:
		return utils.OperacionPageAlloc
	case SyscallFork:
		return utils.OperacionFork
	case SyscallExit:
		return utils.OperacionExit
	case SyscallKill:
		return utils.OperacionKill
	case SyscallSleep:
		return utils.OperacionSleep
	default:
		return fmt.Sprintf("SYSCALL_%d", numero)
	}
}

// NumeroSyscall es la inversa de NombreSyscall
func NumeroSyscall(operacion string) (uint64, bool) {
	for numero := SyscallGetPID; numero <= SyscallSleep; numero++ {
		if NombreSyscall(numero) == operacion {
			return numero, true
		}
	}
	return 0, false
}

// Syscall atiende una llamada al sistema del proceso actual. regs.RAX trae el
// número y regs.RDI el argumento; el valor de retorno queda en Regs.RAX del
// proceso que la hizo.
func (k *Kernel) Syscall(regs Registros) (Decision, error) {
	if k.detenido {
		return Decision{Tipo: Detener}, ErrKernelDetenido
	}
	if !k.ejecutando || k.actual == nil {
		return k.panico(fmt.Sprintf("syscall %d sin proceso en ejecución", regs.RAX))
	}

	p := k.actual
	p.Regs = regs
	p.contarSyscall()

	k.memshow()
	if k.consultarParada() {
		return k.detener()
	}

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Solicitó syscall: %s", p.PID, NombreSyscall(regs.RAX)), "arg", regs.RDI)

	switch regs.RAX {
	case SyscallPanic:
		return k.panico(fmt.Sprintf("process %d called sys_panic()", p.PID))

	case SyscallGetPID:
		return k.retornar(uint64(p.PID))

	case SyscallYield:
		p.Regs.RAX = 0
		return k.Planificar()

	case SyscallPageAlloc:
		if err := k.asignarPagina(p, regs.RDI); err != nil {
			utils.InfoLog.Info("page_alloc rechazado", "pid", p.PID, "va", regs.RDI, "error", err)
			return k.retornar(RetornoError)
		}
		return k.retornar(0)

	case SyscallFork:
		hijo, err := k.fork(p)
		if err != nil {
			utils.InfoLog.Info("fork rechazado", "pid", p.PID, "error", err)
			return k.retornar(RetornoError)
		}
		return k.retornar(uint64(hijo))

	case SyscallExit:
		if err := k.Terminar(p.PID); err != nil {
			return k.panico(fmt.Sprintf("exit de pid %d: %v", p.PID, err))
		}
		return k.Planificar()

	case SyscallKill:
		return k.kill(p, regs.RDI)

	case SyscallSleep:
		return k.dormir(p, regs.RDI)

	default:
		return k.panico(fmt.Sprintf("Unexpected system call %d!", regs.RAX))
	}
}

// retornar deja valor en el registro de retorno del actual y lo reanuda
func (k *Kernel) retornar(valor uint64) (Decision, error) {
	k.actual.Regs.RAX = valor
	return k.Ejecutar(k.actual)
}

// asignarPagina instala un marco nuevo, escribible y en cero, en va. Si va ya
// tenía una página de usuario se reemplaza y su marco se suelta.
func (k *Kernel) asignarPagina(p *Proceso, va uint64) error {
	l := k.config.Layout
	if va < l.InicioProcesos || va >= l.MemoriaVirtual || va%l.TamPagina != 0 {
		return fmt.Errorf("%w: va %#x fuera de [%#x, %#x) o desalineada",
			memoria.ErrDireccionInvalida, va, l.InicioProcesos, l.MemoriaVirtual)
	}

	pa, err := k.mem.Asignar(l.TamPagina)
	if err != nil {
		return err
	}

	var anterior uint64
	if viejo, perm, ok := p.Espacio.Traducir(va); ok && perm.Usuario() {
		anterior = viejo
		p.Espacio.Desmapear(va)
	}
	if err := p.Espacio.Instalar(va, pa, memoria.PermUsuarioEscritura); err != nil {
		if anterior != 0 {
			// Se devuelve el mapeo anterior tal como estaba
			_ = p.Espacio.Instalar(va, anterior, memoria.PermUsuarioEscritura)
			anterior = 0
		}
		return errors.Join(err, k.mem.Liberar(pa))
	}
	if err := k.mem.Liberar(anterior); err != nil {
		return err
	}

	p.contarPaginaAsignada()
	utils.InfoLog.Debug("Página asignada", "pid", p.PID, "va", va, "pa", pa)
	return nil
}

// fork duplica al padre en la primera ranura libre y devuelve el pid del hijo
func (k *Kernel) fork(padre *Proceso) (int, error) {
	var hijo *Proceso
	for _, candidato := range k.procesos[1:] {
		if candidato.Estado == EstadoFree {
			hijo = candidato
			break
		}
	}
	if hijo == nil {
		return 0, ErrSinRanura
	}

	espacio, err := padre.Espacio.Duplicar()
	if err != nil {
		// La ranura nunca dejó de estar FREE
		return 0, err
	}

	hijo.liberarRanura()
	hijo.Espacio = espacio
	hijo.Regs = padre.Regs
	hijo.Regs.RAX = 0
	hijo.Estado = EstadoRunnable
	padre.contarFork()

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Fork - Hijo: %d - Marcos libres: %d", padre.PID, hijo.PID, k.mem.MarcosLibres()))
	return hijo.PID, nil
}

func (k *Kernel) kill(p *Proceso, objetivo uint64) (Decision, error) {
	if objetivo == 0 || objetivo >= uint64(len(k.procesos)) || k.procesos[objetivo].Estado == EstadoFree {
		return k.retornar(RetornoError)
	}

	if err := k.Terminar(int(objetivo)); err != nil {
		return k.panico(fmt.Sprintf("kill de pid %d: %v", objetivo, err))
	}
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Finalizó proceso: %d", p.PID, objetivo))

	if p.Estado != EstadoRunnable {
		// Se mató a sí mismo
		return k.Planificar()
	}
	return k.retornar(0)
}

func (k *Kernel) dormir(p *Proceso, ticks uint64) (Decision, error) {
	if ticks == 0 {
		return k.retornar(0)
	}

	if k.config.ModoSleep == SleepBloqueante {
		p.Regs.RAX = 0
		p.Estado = EstadoBlocked
		p.despertarEn = k.Ticks() + ticks
		utils.InfoLog.Debug("Proceso bloqueado por sleep", "pid", p.PID, "despertar_en", p.despertarEn)
		return k.Planificar()
	}

	// Espera activa: el timer sigue contando aunque no pueda entrar al kernel
	hasta := k.Ticks() + ticks
	for k.Ticks() < hasta {
		if k.consultarParada() {
			return k.detener()
		}
		runtime.Gosched()
	}
	return k.retornar(0)
}
