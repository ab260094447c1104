package main

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

const (
	nombreDemonioSwapOut = "swapout"
	nombreDemonioSwapIn  = "swapin"
	nombreShell          = "sh"
)

// nombreArchivoSwap arma el nombre determinístico del archivo de página:
// PID_VPN.swp, ambos en decimal
func nombreArchivoSwap(pid, vpn int) string {
	return fmt.Sprintf("%d_%d.swp", pid, vpn)
}

// escribirPagina vuelca una página al archivo PID_VPN.swp. Corre en el
// contexto del demonio de swap-out, que retiene el descriptor abierto en su
// propia tabla hasta la limpieza de fin de vida.
func (k *Kernel) escribirPagina(d *Proc, pid, vpn int, datos []byte) error {
	k.limiteArchivos.Add(1)

	nombre := nombreArchivoSwap(pid, vpn)
	utils.AplicarRetardo("swap", k.config.RetardoSwap)

	// Una página reexpulsada reutiliza el descriptor viejo de su archivo
	for fd := 0; fd < NOFILE; fd++ {
		if d.ofile[fd] != nil && d.ofile[fd].Nombre == nombre {
			d.ofile[fd].Cerrar()
			d.ofile[fd] = nil
		}
	}

	archivo, err := k.fs.Crear(nombre)
	if err != nil {
		utils.ErrorLog.Error("Error creando archivo de página", "archivo", nombre, "error", err)
		return err
	}
	if fd := d.fdalloc(archivo); fd < 0 {
		archivo.Cerrar()
		return fmt.Errorf("sin descriptores libres en %s", d.nombre)
	}
	if _, err := archivo.EscribirEn(datos, 0); err != nil {
		utils.ErrorLog.Error("Error escribiendo archivo de página", "archivo", nombre, "error", err)
		return err
	}

	k.contSwapOut.Add(1)
	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Datos movidos a SWAP - Página: %d - Archivo: %s", pid, vpn, nombre))
	return nil
}

// leerPagina trae la página desde PID_VPN.swp, borra el archivo y devuelve
// el contenido. Corre en el contexto del demonio de swap-in.
func (k *Kernel) leerPagina(d *Proc, pid, vpn int) ([]byte, error) {
	nombre := nombreArchivoSwap(pid, vpn)
	utils.AplicarRetardo("swap", k.config.RetardoSwap)

	archivo, err := k.fs.Abrir(nombre, false)
	if err != nil {
		return nil, err
	}
	fd := d.fdalloc(archivo)
	if fd < 0 {
		archivo.Cerrar()
		return nil, fmt.Errorf("sin descriptores libres en %s", d.nombre)
	}

	buf := make([]byte, k.config.TamPagina)
	if _, err := archivo.LeerEn(buf, 0); err != nil {
		d.ofile[fd] = nil
		archivo.Cerrar()
		return nil, fmt.Errorf("error leyendo archivo de página %s: %v", nombre, err)
	}

	k.contSwapIn.Add(1)
	if err := k.fs.Eliminar(nombre); err != nil {
		utils.ErrorLog.Error("Error eliminando archivo de página", "archivo", nombre, "error", err)
	}
	d.ofile[fd] = nil
	archivo.Cerrar()

	utils.InfoLog.Info(fmt.Sprintf("## PID: %d - Página %d recuperada de SWAP", pid, vpn))
	return buf, nil
}

// leerPaginaSinEliminar lee el contenido de un archivo de página dejándolo
// en disco; lo usa fork para copiar páginas expulsadas del padre
func (k *Kernel) leerPaginaSinEliminar(pid, vpn int) ([]byte, error) {
	nombre := nombreArchivoSwap(pid, vpn)

	archivo, err := k.fs.Abrir(nombre, false)
	if err != nil {
		return nil, err
	}
	defer archivo.Cerrar()

	buf := make([]byte, k.config.TamPagina)
	if _, err := archivo.LeerEn(buf, 0); err != nil {
		return nil, fmt.Errorf("error leyendo archivo de página %s: %v", nombre, err)
	}
	return buf, nil
}

// eliminarPagina borra el archivo de página de (pid, vpn) si existe
func (k *Kernel) eliminarPagina(pid, vpn int) {
	nombre := nombreArchivoSwap(pid, vpn)
	if !k.fs.Existe(nombre) {
		return
	}
	if err := k.fs.Eliminar(nombre); err != nil {
		utils.ErrorLog.Error("Error eliminando archivo de página", "archivo", nombre, "error", err)
	}
}
