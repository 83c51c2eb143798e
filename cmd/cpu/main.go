package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sisoputnfrba/tp-2025-2c-WeensyGo/utils"
)

func main() {
	utils.InicializarLogger("INFO", "CPU")

	rutaConfig := filepath.Join("configs", "cpu-config.json")
	if len(os.Args) >= 2 {
		rutaConfig = os.Args[1]
	}

	if _, err := os.Stat(rutaConfig); os.IsNotExist(err) {
		fmt.Printf("Error: El archivo de configuración '%s' no existe\n", rutaConfig)
		os.Exit(1)
	}

	var err error
	config, err = utils.CargarConfiguracion[CPUConfig](rutaConfig)
	if err != nil {
		utils.ErrorLog.Error("Error cargando configuración", "error", err)
		os.Exit(1)
	}
	utils.InicializarLogger(config.LogLevel, "CPU")

	script := config.Script
	if len(os.Args) >= 3 {
		script = os.Args[2]
	}
	if script == "" {
		utils.ErrorLog.Error("No se indicó un script (SCRIPT o segundo argumento)")
		os.Exit(1)
	}

	kernelClient := utils.NewHTTPClient(config.IPKernel, config.PortKernel, "CPU")
	if err := kernelClient.ConectarConReintentos(10, 3*time.Second); err != nil {
		utils.ErrorLog.Error("No se pudo conectar con el Kernel", "error", err)
		os.Exit(1)
	}
	if _, err := kernelClient.EnviarHTTPMensaje(utils.MensajeHandshake, "", map[string]interface{}{"nombre": "CPU"}); err != nil {
		utils.ErrorLog.Error("Handshake con el Kernel fallido", "error", err)
		os.Exit(1)
	}

	cpu := NuevaCPU(kernelClient, time.Duration(config.RetardoMs)*time.Millisecond)
	if err := cpu.EjecutarArchivo(script); err != nil {
		utils.ErrorLog.Error("Error ejecutando el script", "script", script, "error", err)
		os.Exit(1)
	}
}
