package main

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
)

// KernelConfig define la configuración del módulo Kernel. Los límites del
// núcleo (layout de memoria, ranuras, HZ, modo de sleep) van en el mismo JSON.
type KernelConfig struct {
	kernel.Config
	IPKernel   string   `json:"IP_KERNEL"`
	PortKernel int      `json:"PUERTO_KERNEL"`
	LogLevel   string   `json:"LOG_LEVEL"`
	Programas  []string `json:"PROGRAMAS"`            // Se cargan en las ranuras 1..n
	DumpPath   string   `json:"DUMP_PATH,omitempty"`  // Directorio de los memory dumps
	VisorPath  string   `json:"VISOR_PATH,omitempty"` // Directorio del PNG del visor; vacío solo loguea
}

func (c *KernelConfig) completar() error {
	c.Config = c.Config.CompletarConDefectos()
	if c.IPKernel == "" {
		c.IPKernel = "127.0.0.1"
	}
	if c.PortKernel == 0 {
		c.PortKernel = 8001
	}
	if c.DumpPath == "" {
		c.DumpPath = "dumps"
	}
	if len(c.Programas) >= c.CantidadProcesos {
		return fmt.Errorf("%d programas no entran en %d ranuras (la 0 no se usa)", len(c.Programas), c.CantidadProcesos)
	}
	return c.Validar()
}
