package kernel

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

// MetricasProceso almacena estadísticas de un proceso durante su vida
type MetricasProceso struct {
	Syscalls         int
	PaginasAsignadas int
	Forks            int
	FallosPagina     int
	Despachos        int
}

func (p *Proceso) contarSyscall() {
	p.Metricas.Syscalls++
}

func (p *Proceso) contarPaginaAsignada() {
	p.Metricas.PaginasAsignadas++
}

func (p *Proceso) contarFork() {
	p.Metricas.Forks++
}

func (p *Proceso) contarFalloPagina() {
	p.Metricas.FallosPagina++
}

func (p *Proceso) contarDespacho() {
	p.Metricas.Despachos++
}

// logMetricasFinales deja el log obligatorio de destrucción de proceso
func logMetricasFinales(p *Proceso) {
	m := p.Metricas
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Proceso Destruido - Métricas: SYSCALL;%d;PAGE_ALLOC;%d;FORK;%d;PF;%d;DESPACHOS;%d",
		p.PID, m.Syscalls, m.PaginasAsignadas, m.Forks, m.FallosPagina, m.Despachos))
}
