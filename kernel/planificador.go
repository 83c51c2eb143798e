package kernel

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/memoria"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// TipoDecision indica qué hace la máquina al salir del kernel
type TipoDecision int

const (
	// Reanudar vuelve a modo usuario con los registros del proceso elegido
	Reanudar TipoDecision = iota
	// Girar deja la CPU ociosa hasta la próxima interrupción
	Girar
	// Detener apaga la máquina: se vio la señal de parada
	Detener
	// Panico apaga la máquina por una violación de invariante
	Panico
)

func (t TipoDecision) String() string {
	switch t {
	case Reanudar:
		return "REANUDAR"
	case Girar:
		return "GIRAR"
	case Detener:
		return "DETENER"
	case Panico:
		return "PANICO"
	default:
		return fmt.Sprintf("TipoDecision(%d)", int(t))
	}
}

// Decision es el resultado de cada entrada al kernel
type Decision struct {
	Tipo    TipoDecision
	PID     int       // Proceso a reanudar
	Regs    Registros // Registros a restaurar
	Mensaje string    // Motivo del pánico
}

// giroVisor es cada cuántas vueltas ociosas del planificador se refresca el visor
const giroVisor = 1 << 12

// Planificar elige el próximo proceso RUNNABLE en orden round-robin a partir
// del siguiente al actual. Si no hay ninguno devuelve Girar; el llamador
// vuelve a entrar con la próxima interrupción del timer.
func (k *Kernel) Planificar() (Decision, error) {
	if k.detenido {
		return Decision{Tipo: Detener}, ErrKernelDetenido
	}

	n := len(k.procesos)
	desde := 0
	if k.actual != nil {
		desde = k.actual.PID
	}
	for i := 1; i <= n; i++ {
		p := k.procesos[(desde+i)%n]
		if p.Estado == EstadoRunnable {
			return k.Ejecutar(p)
		}
	}

	k.ejecutando = false
	k.giros++
	if k.consultarParada() {
		return k.detener()
	}
	if k.giros%giroVisor == 0 {
		k.memshow()
	}
	return Decision{Tipo: Girar}, nil
}

// Ejecutar transfiere el control a p. p debe estar RUNNABLE.
func (k *Kernel) Ejecutar(p *Proceso) (Decision, error) {
	if p.Estado != EstadoRunnable {
		return k.panico(fmt.Sprintf("ejecutar pid %d en estado %s", p.PID, p.Estado))
	}
	if err := k.verificarTabla(p.Espacio); err != nil {
		return k.panico(fmt.Sprintf("tabla de páginas de pid %d: %v", p.PID, err))
	}

	if k.actual != p || !k.ejecutando {
		utils.InfoLog.Debug("Despachando proceso", "pid", p.PID, "rip", p.Regs.RIP)
	}
	k.actual = p
	k.ejecutando = true
	p.contarDespacho()

	return Decision{Tipo: Reanudar, PID: p.PID, Regs: p.Regs}, nil
}

// verificarTabla comprueba que el espacio contiene el mapeo del kernel y de la
// consola con los permisos esperados antes de entregarle la CPU.
func (k *Kernel) verificarTabla(esp *memoria.EspacioDirecciones) error {
	if esp == nil || esp.Raiz() == 0 {
		return fmt.Errorf("espacio sin raíz")
	}
	l := k.config.Layout
	for _, va := range []uint64{l.InicioKernel, l.TopePilaKernel - l.TamPagina} {
		pa, perm, ok := esp.Traducir(va)
		if !ok || pa != va || perm != memoria.PermKernel {
			return fmt.Errorf("va %#x del kernel mal mapeada: pa %#x permiso %s", va, pa, perm)
		}
	}
	pa, perm, ok := esp.Traducir(l.DireccionConsola)
	if !ok || pa != l.DireccionConsola || perm != memoria.PermUsuarioEscritura {
		return fmt.Errorf("consola mal mapeada: pa %#x permiso %s", pa, perm)
	}
	return nil
}

func (k *Kernel) consultarParada() bool {
	return k.parada != nil && k.parada()
}

func (k *Kernel) detener() (Decision, error) {
	k.detenido = true
	k.ejecutando = false
	utils.InfoLog.Info("Señal de parada recibida, apagando el kernel", "ticks", k.Ticks())
	return Decision{Tipo: Detener}, nil
}

// panico detiene el kernel; la decisión y el error describen lo mismo
func (k *Kernel) panico(mensaje string) (Decision, error) {
	k.detenido = true
	k.ejecutando = false
	utils.ErrorLog.Error("PANIC", "mensaje", mensaje, "ticks", k.Ticks())
	return Decision{Tipo: Panico, Mensaje: mensaje}, &PanicoKernel{Mensaje: mensaje}
}
