package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

var ErrSinProceso = errors.New("no hay proceso en ejecución")

// Maquina es el hardware simulado alrededor del núcleo: serializa las entradas
// al kernel (interrupciones deshabilitadas mientras se atiende una), guarda los
// registros del proceso que está en la CPU y provee el timer y la señal de parada.
type Maquina struct {
	k       *kernel.Kernel
	entrada *utils.Semaforo

	// Registros del proceso en la CPU y última decisión; solo con entrada tomada
	regs     kernel.Registros
	decision kernel.Decision

	parar   atomic.Bool
	acks    atomic.Uint64
	fin     chan struct{}
	finOnce sync.Once
	panico  atomic.Bool
}

// NuevaMaquina crea el kernel con la máquina como controlador de interrupciones
// y fuente de la señal de parada.
func NuevaMaquina(config kernel.Config, visor kernel.Visor) (*Maquina, error) {
	m := &Maquina{
		entrada:  utils.NewSemaforo(1),
		decision: kernel.Decision{Tipo: kernel.Girar},
		fin:      make(chan struct{}),
	}

	k, err := kernel.Nuevo(config, kernel.Opciones{Visor: visor, Controlador: m, Parada: m.parar.Load})
	if err != nil {
		return nil, err
	}
	m.k = k
	return m, nil
}

// Ack implementa kernel.ControladorInterrupciones
func (m *Maquina) Ack() {
	m.acks.Add(1)
}

// Kernel devuelve el núcleo que corre en la máquina
func (m *Maquina) Kernel() *kernel.Kernel {
	return m.k
}

// Detener levanta la señal de parada; el kernel la ve en su próxima entrada
func (m *Maquina) Detener() {
	m.parar.Store(true)
}

// Fin se cierra cuando el kernel se detuvo o entró en pánico
func (m *Maquina) Fin() <-chan struct{} {
	return m.fin
}

// Panico indica si la máquina terminó por un pánico del kernel
func (m *Maquina) Panico() bool {
	return m.panico.Load()
}

// entrar ejecuta una entrada al kernel con las interrupciones deshabilitadas.
// Con desdeProceso la entrada la provoca una instrucción del proceso en la CPU.
func (m *Maquina) entrar(desdeProceso bool, f func() (kernel.Decision, error)) (kernel.Decision, error) {
	m.entrada.Wait()
	defer m.entrada.Signal()
	if desdeProceso && m.decision.Tipo != kernel.Reanudar {
		return m.decision, ErrSinProceso
	}
	return m.registrar(f())
}

func (m *Maquina) registrar(d kernel.Decision, err error) (kernel.Decision, error) {
	m.decision = d
	switch d.Tipo {
	case kernel.Reanudar:
		m.regs = d.Regs
	case kernel.Girar:
		m.regs = kernel.Registros{}
	case kernel.Panico:
		m.panico.Store(true)
		utils.ErrorLog.Error(fmt.Sprintf("## KERNEL PANIC - %s", d.Mensaje))
		m.terminar()
	case kernel.Detener:
		m.terminar()
	}
	return d, err
}

func (m *Maquina) terminar() {
	m.finOnce.Do(func() { close(m.fin) })
}

// Arrancar transfiere el control al primer proceso
func (m *Maquina) Arrancar() (kernel.Decision, error) {
	return m.entrar(false, m.k.Arrancar)
}

// Interrupcion entrega un tick del timer con los registros del proceso en la CPU
func (m *Maquina) Interrupcion() (kernel.Decision, error) {
	return m.entrar(false, func() (kernel.Decision, error) {
		regs := m.regs
		regs.IntNo = kernel.IntTimer
		return m.k.Excepcion(regs)
	})
}

// Syscall ejecuta la instrucción syscall en nombre del proceso en la CPU.
// retorno es lo que quedó en RAX del llamador; vale false si el llamador ya no
// existe (exit, kill a sí mismo).
func (m *Maquina) Syscall(numero, arg uint64) (retorno int64, existe bool, d kernel.Decision, err error) {
	d, err = m.entrar(true, func() (kernel.Decision, error) {
		llamador := m.decision.PID
		regs := m.regs
		regs.RAX = numero
		regs.RDI = arg
		d, err := m.k.Syscall(regs)
		if p, errPID := m.k.Proceso(llamador); errPID == nil && p.Estado != kernel.EstadoFree {
			retorno, existe = int64(p.Regs.RAX), true
		}
		return d, err
	})
	return retorno, existe, d, err
}

// AccesoMemoria ejecuta una lectura o escritura de un byte del proceso en la CPU
func (m *Maquina) AccesoMemoria(va uint64, escritura bool, valor byte) (byte, kernel.Decision, error) {
	var leido byte
	d, err := m.entrar(true, func() (kernel.Decision, error) {
		var d kernel.Decision
		var err error
		leido, d, err = m.k.AccesoMemoria(va, escritura, valor)
		return d, err
	})
	return leido, d, err
}

// Consultar ejecuta f con el kernel quieto, sin que cuente como entrada
func (m *Maquina) Consultar(f func(k *kernel.Kernel, d kernel.Decision)) {
	m.entrada.Wait()
	defer m.entrada.Signal()
	f(m.k, m.decision)
}

// Timer genera hz interrupciones por segundo hasta que ctx se cancela o la
// máquina termina. Si otra entrada tiene las interrupciones deshabilitadas el
// tick igual se cuenta, pero no se atiende.
func (m *Maquina) Timer(ctx context.Context, hz int) {
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.fin:
			return
		case <-ticker.C:
			if !m.entrada.TryWait() {
				m.k.ContarTick()
				continue
			}
			regs := m.regs
			regs.IntNo = kernel.IntTimer
			_, err := m.registrar(m.k.Excepcion(regs))
			m.entrada.Signal()
			if err != nil && !errors.Is(err, kernel.ErrKernelDetenido) {
				utils.ErrorLog.Error("Error atendiendo el timer", "error", err)
			}
		}
	}
}
