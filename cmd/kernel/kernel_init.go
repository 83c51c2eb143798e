package main

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/kernel"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/visor"
)

var (
	kernelModulo *utils.Modulo
	kernelConfig *KernelConfig
	maquina      *Maquina
)

// inicializarKernel carga la configuración, arma la máquina con los programas
// en sus ranuras y levanta el servidor del módulo.
func inicializarKernel(configPath string) error {
	kernelModulo = utils.NuevoModulo("Kernel", configPath)

	var err error
	kernelConfig, err = utils.CargarConfiguracion[KernelConfig](configPath)
	if err != nil {
		return err
	}
	if err := kernelConfig.completar(); err != nil {
		return fmt.Errorf("configuración inválida: %w", err)
	}

	utils.InicializarLogger(kernelConfig.LogLevel, "Kernel")
	utils.InfoLog.Info("Inicializando Kernel", "config_path", configPath)

	maquina, err = armarMaquina(kernelConfig)
	if err != nil {
		return err
	}

	registrarHandlers(kernelModulo, maquina, kernelConfig.DumpPath)
	kernelModulo.IniciarServidor(kernelConfig.IPKernel, kernelConfig.PortKernel)

	utils.InfoLog.Info("Kernel inicializado correctamente")
	return nil
}

// armarMaquina crea el visor y el kernel y carga cada programa en la ranura i+1
func armarMaquina(config *KernelConfig) (*Maquina, error) {
	var v kernel.Visor
	if config.VisorPath != "" {
		vis, err := visor.Nuevo(config.VisorPath)
		if err != nil {
			return nil, err
		}
		v = vis
	}

	m, err := NuevaMaquina(config.Config, v)
	if err != nil {
		return nil, err
	}

	for i, ruta := range config.Programas {
		programa, err := kernel.CargarPrograma(ruta)
		if err != nil {
			return nil, err
		}
		if err := m.Kernel().Crear(i+1, programa); err != nil {
			return nil, fmt.Errorf("no se pudo crear el proceso %d (%s): %w", i+1, ruta, err)
		}
	}

	utils.InfoLog.Info("Programas cargados", "cantidad", len(config.Programas),
		"marcos_libres", m.Kernel().Memoria().MarcosLibres())
	return m, nil
}
